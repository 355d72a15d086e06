package events

import "time"

// Evento emitido pelo oracle-service após a liquidação de uma corrida.
type RaceSettled struct {
	RaceID          string    `json:"raceId"`
	WinningDriverID string    `json:"winningDriverId"`
	WinOdds         float64   `json:"winOdds"` // odd final do pool (totalPool*(1-fee)/driverPool)
	TotalPoolCents  int64     `json:"total_pool_cents"`
	BetsWon         int       `json:"bets_won"`
	BetsLost        int       `json:"bets_lost"`
	Ts              time.Time `json:"ts"`
}
