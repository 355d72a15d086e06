package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/odds"
)

// Params são os parâmetros do motor parimutuel aplicados pelo repositório.
type Params struct {
	MinStakeCents int64
	MaxStakeCents int64
	FeeBps        int64
	OddsCeiling   float64
}

// Postgres implementa o ledger de pools, o registro de apostas e o ciclo de
// vida das corridas em banco Postgres. Toda sequência check-then-mutate roda
// dentro de uma transação com lock de linha (FOR UPDATE) — escopo sempre
// limitado a uma corrida ou uma aposta, nunca ao ledger inteiro.
type Postgres struct {
	db     *sql.DB
	params Params
}

// NewPostgres retorna uma instância do repositório do motor de apostas.
func NewPostgres(db *sql.DB, params Params) *Postgres {
	return &Postgres{db: db, params: params}
}

// checkOracle valida a autoridade do oráculo ANTES de qualquer inspeção de estado.
func checkOracle(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, authority string) error {
	var current string
	if err := q.QueryRowContext(ctx, `SELECT authority FROM oracle_state WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("load oracle authority: %w", err)
	}
	if authority == "" || authority != current {
		return ErrNotAuthorized
	}
	return nil
}

// CreateRace registra uma nova corrida com status UPCOMING.
// Ação administrativa do oráculo, antes da abertura das apostas.
func (p *Postgres) CreateRace(ctx context.Context, authority string, r *Race) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkOracle(ctx, tx, authority); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO races (id, name, circuit, country, race_date, cutoff_time, status, total_pool_cents)
		VALUES ($1,$2,$3,$4,$5,$6,'UPCOMING',0)`,
		r.ID, r.Name, r.Circuit, r.Country, r.RaceDate, r.CutoffTime,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// AddDriver registra um piloto na corrida (pool zerado).
// Só permitido enquanto a corrida está UPCOMING.
func (p *Postgres) AddDriver(ctx context.Context, authority string, d *Driver) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkOracle(ctx, tx, authority); err != nil {
		return err
	}

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM races WHERE id=$1 FOR UPDATE`, d.RaceID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrRaceNotFound
	} else if err != nil {
		return err
	}
	if status != RaceUpcoming {
		return fmt.Errorf("%w: race is %s", ErrRaceNotOpen, status)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO race_drivers (race_id, driver_id, name, car_number, team, total_stake_cents)
		VALUES ($1,$2,$3,$4,$5,0)`,
		d.RaceID, d.DriverID, d.Name, d.CarNumber, d.Team,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// SetOracle troca a autoridade do oráculo. Só o oráculo atual pode rotacionar.
func (p *Postgres) SetOracle(ctx context.Context, authority, newAuthority string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkOracle(ctx, tx, authority); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE oracle_state SET authority=$1, updated_at=NOW() WHERE id=1`, newAuthority); err != nil {
		return err
	}

	return tx.Commit()
}

// PlaceBet registra uma aposta: incrementa os pools (piloto e corrida) e cria
// o registro da aposta na MESMA transação — nunca existe aposta sem o
// incremento de pool correspondente, nem o contrário.
//
// O lock na linha da corrida serializa o check de status/cutoff com a escrita
// do stake: nenhuma aposta entra depois do resolve, mesmo sob concorrência.
func (p *Postgres) PlaceBet(ctx context.Context, userID, raceID, driverID string, stakeCents int64) (*Bet, error) {
	// Validação de bounds antes de abrir transação: rejeição sem escrita
	if stakeCents < p.params.MinStakeCents || stakeCents > p.params.MaxStakeCents {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidStake,
			stakeCents, p.params.MinStakeCents, p.params.MaxStakeCents)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status string
	var cutoff time.Time
	err = tx.QueryRowContext(ctx, `SELECT status, cutoff_time FROM races WHERE id=$1 FOR UPDATE`, raceID).
		Scan(&status, &cutoff)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	} else if err != nil {
		return nil, err
	}

	if status != RaceUpcoming {
		return nil, fmt.Errorf("%w: race is %s", ErrRaceNotOpen, status)
	}
	if !time.Now().Before(cutoff) {
		// Cutoff vencido: fecha a corrida aqui mesmo e rejeita a aposta.
		// O campo status pode estar defasado; o relógio manda.
		if _, err = tx.ExecContext(ctx, `UPDATE races SET status='CLOSED', updated_at=NOW() WHERE id=$1`, raceID); err != nil {
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cutoff passed", ErrRaceNotOpen)
	}

	// Incrementa o pool do piloto; zero linhas = piloto não registrado na corrida
	res, err := tx.ExecContext(ctx, `
		UPDATE race_drivers SET total_stake_cents = total_stake_cents + $1
		WHERE race_id=$2 AND driver_id=$3`, stakeCents, raceID, driverID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUnknownDriver
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE races SET total_pool_cents = total_pool_cents + $1, updated_at=NOW()
		WHERE id=$2`, stakeCents, raceID); err != nil {
		return nil, err
	}

	// Odd cotada: recalculada a partir dos pools já incrementados
	var driverPool, totalPool int64
	if err = tx.QueryRowContext(ctx, `
		SELECT d.total_stake_cents, r.total_pool_cents
		FROM race_drivers d JOIN races r ON r.id = d.race_id
		WHERE d.race_id=$1 AND d.driver_id=$2`, raceID, driverID).
		Scan(&driverPool, &totalPool); err != nil {
		return nil, err
	}
	quoted := odds.Implied(driverPool, totalPool, p.params.FeeBps, p.params.OddsCeiling)

	b := &Bet{
		ID:         uuid.NewString(),
		UserID:     userID,
		RaceID:     raceID,
		DriverID:   driverID,
		StakeCents: stakeCents,
		QuotedOdds: quoted,
		Status:     BetPending,
	}
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO bets (id, user_id, race_id, driver_id, stake_cents, quoted_odds, status)
		VALUES ($1,$2,$3,$4,$5,$6,'PENDING')
		RETURNING created_at`,
		b.ID, b.UserID, b.RaceID, b.DriverID, b.StakeCents, b.QuotedOdds,
	).Scan(&b.CreatedAt); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// CloseRace encerra o período de apostas: UPCOMING -> CLOSED.
// Idempotente: fechar uma corrida já fechada (ou liquidada) é no-op.
func (p *Postgres) CloseRace(ctx context.Context, authority, raceID string) (*Race, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := checkOracle(ctx, tx, authority); err != nil {
		return nil, err
	}

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM races WHERE id=$1 FOR UPDATE`, raceID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	} else if err != nil {
		return nil, err
	}

	if status == RaceUpcoming {
		if _, err = tx.ExecContext(ctx, `UPDATE races SET status='CLOSED', updated_at=NOW() WHERE id=$1`, raceID); err != nil {
			return nil, err
		}
	}

	r, err := scanRace(tx.QueryRowContext(ctx, raceQuery+` WHERE id=$1`, raceID))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// CloseExpired fecha automaticamente as corridas cujo cutoff já passou.
// Chamado em loop pelo oracle-service; retorna os ids fechados.
func (p *Postgres) CloseExpired(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE races SET status='CLOSED', updated_at=NOW()
		WHERE status='UPCOMING' AND cutoff_time <= NOW()
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResolveRace liquida a corrida: {UPCOMING,CLOSED} -> SETTLED, uma única vez.
// Fecha implicitamente se ainda estiver aberta, valida o piloto vencedor e
// fixa a odd final do pool (totalPool*(1-fee)/winnerPool) na própria corrida —
// é essa odd que a varredura de liquidação usa para pagar cada aposta.
func (p *Postgres) ResolveRace(ctx context.Context, authority, raceID, winningDriverID string) (*Race, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := checkOracle(ctx, tx, authority); err != nil {
		return nil, err
	}

	var status string
	var totalPool int64
	err = tx.QueryRowContext(ctx, `SELECT status, total_pool_cents FROM races WHERE id=$1 FOR UPDATE`, raceID).
		Scan(&status, &totalPool)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	} else if err != nil {
		return nil, err
	}
	if status == RaceSettled {
		return nil, ErrAlreadySettled
	}

	var winnerPool int64
	err = tx.QueryRowContext(ctx, `
		SELECT total_stake_cents FROM race_drivers WHERE race_id=$1 AND driver_id=$2`,
		raceID, winningDriverID).Scan(&winnerPool)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownDriver
	} else if err != nil {
		return nil, err
	}

	winOdds := odds.Implied(winnerPool, totalPool, p.params.FeeBps, p.params.OddsCeiling)

	if _, err = tx.ExecContext(ctx, `
		UPDATE races SET status='SETTLED', winning_driver_id=$1, win_odds=$2, updated_at=NOW()
		WHERE id=$3`, winningDriverID, winOdds, raceID); err != nil {
		return nil, err
	}

	r, err := scanRace(tx.QueryRowContext(ctx, raceQuery+` WHERE id=$1`, raceID))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// ListPendingBets retorna as apostas ainda PENDING de uma corrida,
// para a varredura de liquidação.
func (p *Postgres) ListPendingBets(ctx context.Context, raceID string) ([]Bet, error) {
	return p.listBets(ctx, `WHERE race_id=$1 AND status='PENDING' ORDER BY created_at`, raceID)
}

// MarkResolved transita uma aposta PENDING -> WON/LOST em um único UPDATE
// condicionado ao status (check-and-set atômico). Segunda chamada para a mesma
// aposta falha com ErrAlreadyResolved — é isso que torna a varredura de
// liquidação segura para reexecução.
func (p *Postgres) MarkResolved(ctx context.Context, betID string, won bool, winOdds float64) (*Bet, error) {
	newStatus := BetLost
	if won {
		newStatus = BetWon
	}

	row := p.db.QueryRowContext(ctx, `
		UPDATE bets
		SET status=$1,
		    payout_cents=CASE WHEN $1='WON' THEN CAST(ROUND(stake_cents * $2) AS BIGINT) ELSE 0 END,
		    updated_at=NOW()
		WHERE id=$3 AND status='PENDING'
		RETURNING id, user_id, race_id, driver_id, stake_cents, quoted_odds, status, payout_cents, COALESCE(settlement_ref,''), created_at, updated_at`,
		newStatus, winOdds, betID)

	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		// Nenhuma linha: ou a aposta não existe, ou já saiu de PENDING
		var st string
		err2 := p.db.QueryRowContext(ctx, `SELECT status FROM bets WHERE id=$1`, betID).Scan(&st)
		if err2 == sql.ErrNoRows {
			return nil, ErrBetNotFound
		} else if err2 != nil {
			return nil, err2
		}
		return nil, fmt.Errorf("%w: bet is %s", ErrAlreadyResolved, st)
	} else if err != nil {
		return nil, err
	}

	return b, nil
}

// Claim transita uma aposta WON -> CLAIMED e cria a intenção de pagamento na
// MESMA transação. O lock na linha da aposta faz do check-then-transition um
// passo único: dois claims concorrentes nunca passam os dois.
func (p *Postgres) Claim(ctx context.Context, betID, userID string) (*Payout, *Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, race_id, driver_id, stake_cents, quoted_odds, status, payout_cents, COALESCE(settlement_ref,''), created_at, updated_at
		FROM bets WHERE id=$1 FOR UPDATE`, betID)
	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, nil, ErrBetNotFound
	} else if err != nil {
		return nil, nil, err
	}

	if b.UserID != userID {
		return nil, nil, ErrNotOwner
	}
	if b.Status != BetWon {
		// cobre não-liquidada, perdida e já paga, com diagnóstico distinto
		return nil, nil, fmt.Errorf("%w: bet is %s", ErrNotClaimable, b.Status)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE bets SET status='CLAIMED', updated_at=NOW() WHERE id=$1`, betID); err != nil {
		return nil, nil, err
	}

	pay := &Payout{
		ID:          uuid.NewString(),
		BetID:       b.ID,
		UserID:      b.UserID,
		AmountCents: b.PayoutCents,
		Status:      PayoutRequested,
	}
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO payouts (id, bet_id, user_id, amount_cents, status)
		VALUES ($1,$2,$3,$4,'REQUESTED')
		RETURNING created_at`,
		pay.ID, pay.BetID, pay.UserID, pay.AmountCents,
	).Scan(&pay.CreatedAt); err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}

	b.Status = BetClaimed
	return pay, b, nil
}
