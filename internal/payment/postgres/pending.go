package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
)

// PendingReader pages through unresolved ledger rows with plain SQL. It shares
// the *sql.DB opened by gorm.
type PendingReader struct {
	db *sqlx.DB
}

// NewPendingReader wraps db; driverName selects the placeholder style ("pgx", "sqlite3").
func NewPendingReader(db *sql.DB, driverName string) *PendingReader {
	return &PendingReader{db: sqlx.NewDb(db, driverName)}
}

const pendingQuery = `
SELECT id, gateway_id, cpf, name, amount_minor, status, pix_code, pix_qr_code, resolved_at, created_at, updated_at
FROM payments
WHERE status = ? AND resolved_at IS NULL AND created_at <= ? AND id > ?
ORDER BY id
LIMIT ?`

// ListPending returns up to limit PENDING rows created before olderThan, with
// ids greater than afterID, in id order.
func (r *PendingReader) ListPending(ctx context.Context, olderThan time.Time, afterID int64, limit int) ([]payment.Payment, error) {
	var rows []payment.Payment
	query := r.db.Rebind(pendingQuery)
	if err := r.db.SelectContext(ctx, &rows, query, payment.StatusPending, olderThan.UTC(), afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return rows, nil
}
