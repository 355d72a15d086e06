package topics

const (
	// Apostas
	BetPlaced = "bet_placed"

	// Liquidação (resultado oficial da corrida)
	RaceSettled = "race_settled"

	// Pagamentos
	PayoutRequested = "payout_requested"
	PayoutCompleted = "payout_completed"

	// DLQs
	PayoutRequestedDLQ = "payout_requested_dlq"
)
