package dto

type PlaceBetRequest struct {
	UserID     string `json:"userId"`
	RaceID     string `json:"raceId"`
	DriverID   string `json:"driverId"` // ex: "VER", "NOR"
	StakeCents int64  `json:"stake_cents"`
}

type ClaimRequest struct {
	UserID string `json:"userId"`
}
