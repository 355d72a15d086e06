package dto

import "time"

type CreateRaceRequest struct {
	RaceID     string    `json:"raceId"` // slug estável, ex: "bahrain-2026"
	Name       string    `json:"name"`
	Circuit    string    `json:"circuit"`
	Country    string    `json:"country"`
	RaceDate   time.Time `json:"race_date"`
	CutoffTime time.Time `json:"cutoff_time"` // último instante em que apostas entram
}

type AddDriverRequest struct {
	DriverID  string `json:"driverId"` // ex: "VER"
	Name      string `json:"name"`
	CarNumber int    `json:"car_number"`
	Team      string `json:"team"`
}

type RaceResultRequest struct {
	WinningDriverID string `json:"winningDriverId"`
}

type SetOracleRequest struct {
	NewAuthority string `json:"new_authority"`
}

type RaceResponse struct {
	RaceID          string  `json:"raceId"`
	Status          string  `json:"status"`
	WinningDriverID string  `json:"winningDriverId,omitempty"`
	WinOdds         float64 `json:"win_odds,omitempty"`
	TotalPoolCents  int64   `json:"total_pool_cents"`
}

type ResolvedBet struct {
	BetID       string `json:"betId"`
	UserID      string `json:"userId"`
	DriverID    string `json:"driverId"`
	StakeCents  int64  `json:"stake_cents"`
	Status      string `json:"status"` // WON | LOST
	PayoutCents int64  `json:"payout_cents"`
}

type SettlementResponse struct {
	Race    RaceResponse  `json:"race"`
	Bets    []ResolvedBet `json:"bets"`
	Won     int           `json:"won"`
	Lost    int           `json:"lost"`
	Resumed bool          `json:"resumed,omitempty"`
}
