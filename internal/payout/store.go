package payout

import (
	"context"
	"database/sql"
)

// PostgresStore marca payouts como executados e carimba a aposta com a
// referência da transferência.
type PostgresStore struct{ db *sql.DB }

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// MarkExecuted efetiva o payout no banco. CAS por status: só transiciona
// REQUESTED -> EXECUTED, então reentregas são inofensivas.
func (s *PostgresStore) MarkExecuted(ctx context.Context, payoutID, betID, providerRef string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status='EXECUTED', provider_ref=$1, executed_at=NOW()
		WHERE id=$2 AND status='REQUESTED'`, providerRef, payoutID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// já executado por uma entrega anterior
		return tx.Commit()
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE bets SET settlement_ref=$1, updated_at=NOW() WHERE id=$2`,
		providerRef, betID); err != nil {
		return err
	}

	return tx.Commit()
}
