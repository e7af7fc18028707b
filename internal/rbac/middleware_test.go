package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"meetnmart/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(t *testing.T, role string, mw gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AllowsListedRole(t *testing.T) {
	if code := serveWithRole(t, RoleSeller, RequireAnyRole(RoleSeller)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveWithRole(t, RoleSuperAdmin, RequireAnyRole(RoleBuyer)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRole(t *testing.T) {
	if code := serveWithRole(t, RoleDeliveryAgent, RequireAnyRole(RoleBuyer, RoleSeller)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingIdentity(t *testing.T) {
	if code := serveWithRole(t, "", RequireAnyRole(RoleBuyer)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIsModerator(t *testing.T) {
	if !IsModerator(RoleModerator) || !IsModerator(RoleSuperAdmin) {
		t.Fatalf("moderator and super_admin may resolve disputes")
	}
	if IsModerator(RoleBuyer) || IsModerator(RoleSeller) {
		t.Fatalf("marketplace roles may not resolve disputes")
	}
}
