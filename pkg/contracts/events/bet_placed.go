package events

type BetPlaced struct {
	BetID      string  `json:"bet_id"`
	UserID     string  `json:"user_id"`
	RaceID     string  `json:"race_id"`
	DriverID   string  `json:"driver_id"`
	StakeCents int64   `json:"stake_cents"`
	QuotedOdds float64 `json:"quoted_odds"` // odd implícita no momento da aposta
	TsUnixMs   int64   `json:"ts_unix_ms"`
}
