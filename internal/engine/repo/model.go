package repo

import "time"

// Status de corrida. Transição monotônica: UPCOMING -> CLOSED -> SETTLED.
const (
	RaceUpcoming = "UPCOMING"
	RaceClosed   = "CLOSED"
	RaceSettled  = "SETTLED"
)

// Status de aposta. PENDING é o inicial; WON/LOST só via liquidação da corrida;
// CLAIMED só a partir de WON, exatamente uma vez.
const (
	BetPending = "PENDING"
	BetWon     = "WON"
	BetLost    = "LOST"
	BetClaimed = "CLAIMED"
)

// Status de pagamento (intenção de transferência criada no claim).
const (
	PayoutRequested = "REQUESTED"
	PayoutExecuted  = "EXECUTED"
)

// Race é o modelo persistido no Postgres.
type Race struct {
	ID              string
	Name            string
	Circuit         string
	Country         string
	RaceDate        time.Time
	CutoffTime      time.Time
	Status          string
	WinningDriverID string  // vazio até SETTLED
	WinOdds         float64 // odd final do pool, fixada na liquidação
	TotalPoolCents  int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Driver é escopado por corrida: o mesmo piloto aparece em várias corridas
// com registros independentes (e pools independentes).
type Driver struct {
	RaceID          string
	DriverID        string
	Name            string
	CarNumber       int
	Team            string
	TotalStakeCents int64
}

// Bet é o modelo persistido no Postgres. Stake e quoted_odds são imutáveis
// após a criação; payout_cents é gravado na liquidação e nunca recalculado.
type Bet struct {
	ID            string
	UserID        string
	RaceID        string
	DriverID      string
	StakeCents    int64
	QuotedOdds    float64 // odd implícita exibida no momento da aposta (auditoria)
	Status        string
	PayoutCents   int64
	SettlementRef string // referência da transferência, preenchida pelo payout-worker
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payout é a intenção de transferência criada atomicamente com o claim.
type Payout struct {
	ID          string
	BetID       string
	UserID      string
	AmountCents int64
	Status      string
	ProviderRef string
	CreatedAt   time.Time
	ExecutedAt  time.Time
}
