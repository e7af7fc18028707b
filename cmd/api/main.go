package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetnmart/internal/audit"
	"meetnmart/internal/auth"
	"meetnmart/internal/calls"
	"meetnmart/internal/config"
	"meetnmart/internal/escrow"
	"meetnmart/internal/events"
	"meetnmart/internal/fees"
	"meetnmart/internal/httpapi"
	"meetnmart/internal/payments"
	"meetnmart/internal/reporting"
	"meetnmart/internal/rtc"
	"meetnmart/pkg/logger"
	"meetnmart/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	cfg = cfg.WithDefaults()

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	rtcProvider, err := rtc.NewLiveKitProvider(cfg.RTC)
	if err != nil {
		log.Error("rtc init failed", "err", err)
		os.Exit(1)
	}

	payProvider, err := payments.NewPaystackProvider(cfg.Payments)
	if err != nil {
		log.Error("payments init failed", "err", err)
		os.Exit(1)
	}

	// Notification channel plumbing.
	store := events.NewStore()
	dispatcher := events.NewDispatcher(store)
	channel, err := events.NewRedisChannel(rdb, "")
	if err != nil {
		log.Error("event channel init failed", "err", err)
		os.Exit(1)
	}

	// Call lifecycle.
	presence := calls.NewRedisPresence(rdb)
	sessionRecorder := calls.NewPostgresRecorder(db)
	callManager := calls.NewManager(calls.Config{
		RingTimeout: cfg.Calls.RingTimeout,
		SlotTTL:     cfg.Calls.MaxSessionLength,
	}, rtcProvider).
		WithPresence(presence).
		WithSlots(calls.NewRedisSlots(rdb, cfg.Calls.MaxSessionLength)).
		WithRecorder(sessionRecorder)

	// Escrow lifecycle, gated on active calls.
	escrowRepo := escrow.NewPostgresRepo(db)
	escrowService := escrow.NewService(escrowRepo, callManager)

	// Commission schedule is managed out of band; seed the launch rates here
	// until the admin surface for editing them lands.
	feesService := fees.NewService(&fees.MemoryRepo{
		Rates: launchCommissionSchedule(cfg.Payments.Currency),
	})

	auditService := audit.NewService(audit.NewMemoryRepo())
	reportingService := reporting.NewService(reportStore{
		sessions: sessionRecorder,
		txs:      escrowRepo,
	})

	binder := &httpapi.Binder{Dispatcher: dispatcher, Calls: callManager, Escrow: escrowService}
	binder.Start()

	go func() {
		if err := channel.Run(rootCtx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event channel stopped", "err", err)
			stop()
		}
	}()

	h := httpapi.Handlers{
		Auth:      authManager,
		Calls:     callManager,
		Escrow:    escrowService,
		Fees:      feesService,
		Reporting: reportingService,
		RTC:       rtcProvider,
		Payments:  payProvider,
		Presence:  presence,
		Store:     store,
		Binder:    binder,
		Publish:   channel.Publish,
		Currency:  cfg.Payments.Currency,
		Resolve:   resolveWithAudit(escrowService, auditService),
	}
	webhook := payments.WebhookHandler{
		Secret: cfg.Payments.WebhookSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			return channel.Publish(c.Request.Context(), e)
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), h, webhook)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// resolveWithAudit applies a moderation outcome and records it in the audit
// trail. Audit failures are logged, not surfaced; the resolution stands.
func resolveWithAudit(es *escrow.Service, as *audit.Service) func(ctx context.Context, actorID, actorRole, ip, transactionID, outcome string) (escrow.Transaction, error) {
	return func(ctx context.Context, actorID, actorRole, ip, transactionID, outcome string) (escrow.Transaction, error) {
		var (
			t   escrow.Transaction
			err error
		)
		switch outcome {
		case "release":
			t, err = es.Release(ctx, transactionID)
		case "refund":
			t, err = es.Refund(ctx, transactionID)
		default:
			return escrow.Transaction{}, escrow.ErrInvalidArgument
		}
		if err != nil {
			return escrow.Transaction{}, err
		}
		if aerr := as.LogDisputeResolution(ctx, actorID, actorRole, ip, transactionID, outcome, ""); aerr != nil {
			logger.From(ctx).Warn("dispute audit failed", "transaction_id", transactionID, "err", aerr)
		}
		return t, nil
	}
}

// reportStore adapts the session and transaction mirrors to the reporting
// repository contract.
type reportStore struct {
	sessions *calls.PostgresRecorder
	txs      *escrow.PostgresRepo
}

func (s reportStore) ListSessions(ctx context.Context, from, to time.Time) ([]calls.CallSession, error) {
	return s.sessions.ListSessions(ctx, from, to)
}

func (s reportStore) ListTransactions(ctx context.Context, from, to time.Time) ([]escrow.Transaction, error) {
	return s.txs.ListTransactions(ctx, from, to)
}

func launchCommissionSchedule(currency string) []fees.CommissionRate {
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []fees.CommissionRate{
		{
			Kind:          escrow.KindSale,
			RateBps:       500,
			MinFeeMinor:   100,
			Currency:      currency,
			Status:        fees.RateStatusActive,
			EffectiveFrom: from,
		},
		{
			Kind:          escrow.KindDelivery,
			RateBps:       300,
			MinFeeMinor:   50,
			Currency:      currency,
			Status:        fees.RateStatusActive,
			EffectiveFrom: from,
		},
	}
}
