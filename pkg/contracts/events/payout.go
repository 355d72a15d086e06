package events

import "time"

// PayoutRequested é emitido pelo engine-service quando um usuário faz o claim
// de uma aposta vencedora. A transferência em si é executada pelo payout-worker.
type PayoutRequested struct {
	PayoutID    string `json:"payout_id"`
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	RaceID      string `json:"race_id"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// PayoutCompleted é emitido pelo payout-worker após creditar o valor na carteira.
type PayoutCompleted struct {
	PayoutID    string    `json:"payoutId"`
	BetID       string    `json:"betId"`
	UserID      string    `json:"userId"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"` // "EXECUTED" | "FAILED"
	ProviderRef string    `json:"providerRef,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Ts          time.Time `json:"ts"`
}
