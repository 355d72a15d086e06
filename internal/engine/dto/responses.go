package dto

import "time"

type BetResponse struct {
	BetID         string    `json:"betId"`
	UserID        string    `json:"userId"`
	RaceID        string    `json:"raceId"`
	DriverID      string    `json:"driverId"`
	StakeCents    int64     `json:"stake_cents"`
	QuotedOdds    float64   `json:"quoted_odds"`
	Status        string    `json:"status"` // PENDING | WON | LOST | CLAIMED
	PayoutCents   int64     `json:"payout_cents"`
	SettlementRef string    `json:"settlement_ref,omitempty"`
	PlacedAt      time.Time `json:"placed_at"`
}

type ClaimResponse struct {
	BetID       string `json:"betId"`
	PayoutID    string `json:"payout_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"` // CLAIMED
}

type DriverResponse struct {
	DriverID        string  `json:"driverId"`
	Name            string  `json:"name"`
	CarNumber       int     `json:"car_number"`
	Team            string  `json:"team"`
	TotalStakeCents int64   `json:"total_stake_cents"`
	ImpliedOdds     float64 `json:"implied_odds"`
}

type RaceResponse struct {
	RaceID          string           `json:"raceId"`
	Name            string           `json:"name"`
	Circuit         string           `json:"circuit"`
	Country         string           `json:"country"`
	RaceDate        time.Time        `json:"race_date"`
	CutoffTime      time.Time        `json:"cutoff_time"`
	Status          string           `json:"status"` // UPCOMING | CLOSED | SETTLED
	WinningDriverID string           `json:"winningDriverId,omitempty"`
	WinOdds         float64          `json:"win_odds,omitempty"`
	TotalPoolCents  int64            `json:"total_pool_cents"`
	Drivers         []DriverResponse `json:"drivers,omitempty"`
}

type OddsResponse struct {
	RaceID      string  `json:"raceId"`
	DriverID    string  `json:"driverId"`
	ImpliedOdds float64 `json:"implied_odds"`
}
