package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sberauto/predictor/features"
)

const clientFirstMonthDDL = `
	CREATE TABLE IF NOT EXISTS client_first_month (
		client_id   TEXT PRIMARY KEY,
		first_month SMALLINT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// ClientStore keeps the first month each client was seen in Postgres so the
// service can share one lookup across instances. It satisfies
// features.History.
type ClientStore struct {
	db *sql.DB
}

func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, clientFirstMonthDDL); err != nil {
		return fmt.Errorf("failed to create client_first_month table: %w", err)
	}
	return nil
}

// SaveFirstMonths makes the table hold exactly months. Rows are streamed
// with COPY into a temporary table, merged, and clients absent from months
// are removed, all in one transaction.
func (s *ClientStore) SaveFirstMonths(ctx context.Context, months features.FirstMonths) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		CREATE TEMP TABLE client_first_month_load (
			client_id   TEXT,
			first_month SMALLINT
		) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("failed to create load table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("client_first_month_load", "client_id", "first_month"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for clientID, month := range months {
		if _, err = stmt.ExecContext(ctx, clientID, month); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy client %s: %w", clientID, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO client_first_month (client_id, first_month)
		SELECT client_id, first_month FROM client_first_month_load
		ON CONFLICT (client_id) DO UPDATE
		SET first_month = EXCLUDED.first_month, updated_at = now()
	`); err != nil {
		return fmt.Errorf("failed to merge first months: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM client_first_month c
		WHERE NOT EXISTS (
			SELECT 1 FROM client_first_month_load l WHERE l.client_id = c.client_id
		)
	`); err != nil {
		return fmt.Errorf("failed to remove stale clients: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit first months: %w", err)
	}
	return nil
}

func (s *ClientStore) FirstMonth(ctx context.Context, clientID string) (int, bool, error) {
	var month int
	err := s.db.QueryRowContext(ctx,
		`SELECT first_month FROM client_first_month WHERE client_id = $1`,
		clientID,
	).Scan(&month)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get first month for client %s: %w", clientID, err)
	}
	return month, true, nil
}
