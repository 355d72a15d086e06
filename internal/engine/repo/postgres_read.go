package repo

import (
	"context"
	"database/sql"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/odds"
)

const raceQuery = `
	SELECT id, name, circuit, country, race_date, cutoff_time, status,
	       COALESCE(winning_driver_id,''), COALESCE(win_odds,0), total_pool_cents,
	       created_at, updated_at
	FROM races`

const betColumns = `id, user_id, race_id, driver_id, stake_cents, quoted_odds, status, payout_cents, COALESCE(settlement_ref,''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRace(row rowScanner) (*Race, error) {
	var r Race
	err := row.Scan(&r.ID, &r.Name, &r.Circuit, &r.Country, &r.RaceDate, &r.CutoffTime,
		&r.Status, &r.WinningDriverID, &r.WinOdds, &r.TotalPoolCents, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanBet(row rowScanner) (*Bet, error) {
	var b Bet
	err := row.Scan(&b.ID, &b.UserID, &b.RaceID, &b.DriverID, &b.StakeCents, &b.QuotedOdds,
		&b.Status, &b.PayoutCents, &b.SettlementRef, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListRaces retorna todas as corridas, das mais recentes para as mais antigas.
// Corridas liquidadas nunca são apagadas (histórico/auditoria).
func (p *Postgres) ListRaces(ctx context.Context) ([]Race, error) {
	rows, err := p.db.QueryContext(ctx, raceQuery+` ORDER BY race_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRace retorna uma corrida pelo id.
func (p *Postgres) GetRace(ctx context.Context, raceID string) (*Race, error) {
	r, err := scanRace(p.db.QueryRowContext(ctx, raceQuery+` WHERE id=$1`, raceID))
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	} else if err != nil {
		return nil, err
	}
	return r, nil
}

// GetDrivers retorna os pilotos de uma corrida com seus pools acumulados.
func (p *Postgres) GetDrivers(ctx context.Context, raceID string) ([]Driver, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT race_id, driver_id, name, car_number, team, total_stake_cents
		FROM race_drivers WHERE race_id=$1 ORDER BY car_number`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.RaceID, &d.DriverID, &d.Name, &d.CarNumber, &d.Team, &d.TotalStakeCents); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ImpliedOdds calcula a odd implícita corrente de um piloto a partir dos pools.
func (p *Postgres) ImpliedOdds(ctx context.Context, raceID, driverID string) (float64, error) {
	var driverPool, totalPool int64
	err := p.db.QueryRowContext(ctx, `
		SELECT d.total_stake_cents, r.total_pool_cents
		FROM race_drivers d JOIN races r ON r.id = d.race_id
		WHERE d.race_id=$1 AND d.driver_id=$2`, raceID, driverID).
		Scan(&driverPool, &totalPool)
	if err == sql.ErrNoRows {
		return 0, ErrUnknownDriver
	} else if err != nil {
		return 0, err
	}
	return odds.Implied(driverPool, totalPool, p.params.FeeBps, p.params.OddsCeiling), nil
}

// GetBet retorna uma aposta pelo id.
func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID))
	if err == sql.ErrNoRows {
		return nil, ErrBetNotFound
	} else if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBetsByUser retorna as apostas de um usuário, mais recentes primeiro.
func (p *Postgres) ListBetsByUser(ctx context.Context, userID string) ([]Bet, error) {
	return p.listBets(ctx, `WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

// ListBetsByRace retorna as apostas de uma corrida, mais recentes primeiro.
func (p *Postgres) ListBetsByRace(ctx context.Context, raceID string) ([]Bet, error) {
	return p.listBets(ctx, `WHERE race_id=$1 ORDER BY created_at DESC`, raceID)
}

func (p *Postgres) listBets(ctx context.Context, where string, arg any) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// PoolAudit compara os totais mantidos pelo ledger com a soma reconstruída
// a partir da tabela de apostas — os dois têm que bater sempre.
type PoolAudit struct {
	RaceID          string `json:"raceId"`
	LedgerTotal     int64  `json:"ledger_total_cents"`
	DriversTotal    int64  `json:"drivers_total_cents"`
	BetsTotal       int64  `json:"bets_total_cents"`
	Consistent      bool   `json:"consistent"`
	PendingBets     int    `json:"pending_bets"`
	ResolvedBets    int    `json:"resolved_bets"`
	ClaimedPayouts  int    `json:"claimed_payouts"`
	PayoutsRequired int64  `json:"payouts_required_cents"`
}

// ReconcilePools reconstrói os pools de uma corrida a partir das apostas.
func (p *Postgres) ReconcilePools(ctx context.Context, raceID string) (*PoolAudit, error) {
	a := &PoolAudit{RaceID: raceID}

	err := p.db.QueryRowContext(ctx, `SELECT total_pool_cents FROM races WHERE id=$1`, raceID).Scan(&a.LedgerTotal)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	} else if err != nil {
		return nil, err
	}

	if err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_stake_cents),0) FROM race_drivers WHERE race_id=$1`, raceID).
		Scan(&a.DriversTotal); err != nil {
		return nil, err
	}

	if err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(stake_cents),0),
		       COUNT(*) FILTER (WHERE status='PENDING'),
		       COUNT(*) FILTER (WHERE status IN ('WON','LOST','CLAIMED')),
		       COUNT(*) FILTER (WHERE status='CLAIMED'),
		       COALESCE(SUM(payout_cents) FILTER (WHERE status IN ('WON','CLAIMED')),0)
		FROM bets WHERE race_id=$1`, raceID).
		Scan(&a.BetsTotal, &a.PendingBets, &a.ResolvedBets, &a.ClaimedPayouts, &a.PayoutsRequired); err != nil {
		return nil, err
	}

	a.Consistent = a.LedgerTotal == a.DriversTotal && a.LedgerTotal == a.BetsTotal
	return a, nil
}
