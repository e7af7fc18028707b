package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// PostgresRecorder mirrors call sessions into Postgres.
//
// Assumed table:
//   call_sessions (
//     id, room_name, buyer_id, seller_id, delivery_agent_id, category,
//     status, created_at, started_at, ended_at, end_reason,
//     participants JSONB, updated_at
//   )
//
// The mirror is an upsert: the in-memory manager is the write path and this
// row is the cross-device projection.
type PostgresRecorder struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db, clock: time.Now}
}

func (r *PostgresRecorder) Save(ctx context.Context, s CallSession) error {
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO call_sessions (
  id, room_name, buyer_id, seller_id, delivery_agent_id, category,
  status, created_at, started_at, ended_at, end_reason, participants, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (id)
DO UPDATE SET status = EXCLUDED.status,
              delivery_agent_id = EXCLUDED.delivery_agent_id,
              started_at = EXCLUDED.started_at,
              ended_at = EXCLUDED.ended_at,
              end_reason = EXCLUDED.end_reason,
              participants = EXCLUDED.participants,
              updated_at = EXCLUDED.updated_at
`
	_, err = r.db.ExecContext(ctx, q,
		s.ID,
		s.RoomName,
		s.BuyerID,
		s.SellerID,
		s.DeliveryAgentID,
		s.Category,
		s.Status,
		s.CreatedAt,
		s.StartedAt,
		s.EndedAt,
		s.EndReason,
		participants,
		r.clock().UTC(),
	)
	return err
}

// ListSessions returns mirrored sessions in a time range, for reporting.
func (r *PostgresRecorder) ListSessions(ctx context.Context, from, to time.Time) ([]CallSession, error) {
	const q = `
SELECT id, room_name, buyer_id, seller_id, delivery_agent_id, category,
       status, created_at, started_at, ended_at, end_reason, participants
FROM call_sessions
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallSession
	for rows.Next() {
		var s CallSession
		var participants []byte
		if err := rows.Scan(
			&s.ID,
			&s.RoomName,
			&s.BuyerID,
			&s.SellerID,
			&s.DeliveryAgentID,
			&s.Category,
			&s.Status,
			&s.CreatedAt,
			&s.StartedAt,
			&s.EndedAt,
			&s.EndReason,
			&participants,
		); err != nil {
			return nil, err
		}
		if len(participants) > 0 {
			if err := json.Unmarshal(participants, &s.Participants); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
