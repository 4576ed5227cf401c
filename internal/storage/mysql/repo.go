package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Repo is the sync journal: one row per handled event or bulk item. The
// journal is write-mostly and best-effort; business state lives in the two
// remote systems, never here.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Migrate creates the journal table when missing.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

func (r *Repo) Record(ctx context.Context, rec domain.SyncRecord) error {
	var createdAt any
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertSyncSQL,
		rec.MembershipID,
		rec.Email,
		rec.Kind,
		rec.Outcome,
		nullStr(rec.Detail),
		createdAt,
	)
	return err
}

func (r *Repo) Recent(ctx context.Context, limit int) ([]domain.SyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, recentSyncSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SyncRecord
	for rows.Next() {
		var rec domain.SyncRecord
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.MembershipID, &rec.Email, &rec.Kind, &rec.Outcome, &rec.Detail, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
