package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/cache"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/dto"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/odds"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/ws"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// Repo define as operações do motor usadas pela API pública de apostas.
type Repo interface {
	PlaceBet(ctx context.Context, userID, raceID, driverID string, stakeCents int64) (*repo.Bet, error)
	Claim(ctx context.Context, betID, userID string) (*repo.Payout, *repo.Bet, error)
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	ListBetsByUser(ctx context.Context, userID string) ([]repo.Bet, error)
	ListBetsByRace(ctx context.Context, raceID string) ([]repo.Bet, error)
	ListRaces(ctx context.Context) ([]repo.Race, error)
	GetRace(ctx context.Context, raceID string) (*repo.Race, error)
	GetDrivers(ctx context.Context, raceID string) ([]repo.Driver, error)
	ImpliedOdds(ctx context.Context, raceID, driverID string) (float64, error)
}

// Publisher publica os eventos emitidos pela API.
type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishPayoutRequested(ctx context.Context, e events.PayoutRequested) error
}

// OddsParams são os parâmetros de exibição de odds (mesmos do repositório).
type OddsParams struct {
	FeeBps      int64
	OddsCeiling float64
}

// Server expõe a API pública do motor de apostas parimutuel.
type Server struct {
	log    *zap.Logger
	repo   Repo
	cache  *cache.Cache
	publ   Publisher
	hub    *ws.Hub
	params OddsParams
}

func NewServer(log *zap.Logger, r Repo, c *cache.Cache, p Publisher, hub *ws.Hub, params OddsParams) *Server {
	return &Server{log: log, repo: r, cache: c, publ: p, hub: hub, params: params}
}

// Router retorna o roteador HTTP com os endpoints da API de apostas.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/races", s.listRaces)
	r.Get("/v1/races/{id}", s.getRace)
	r.Get("/v1/races/{id}/bets", s.listRaceBets)
	r.Get("/v1/races/{id}/odds", s.getRaceOdds)
	r.Get("/v1/races/{id}/odds/{driverId}", s.getDriverOdds)
	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/bets", s.listUserBets) // ?userId=...
	r.Get("/v1/bets/{id}", s.getBet)
	r.Post("/v1/bets/{id}/claim", s.claim)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// placeBet registra uma aposta no pool da corrida.
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.UserID == "" || req.RaceID == "" || req.DriverID == "" || req.StakeCents <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	b, err := s.repo.PlaceBet(r.Context(), req.UserID, req.RaceID, req.DriverID, req.StakeCents)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Odds mudaram: invalida o cache e avisa o odds-worker via Kafka
	if s.cache != nil {
		_ = s.cache.Invalidate(r.Context(), b.RaceID)
	}
	if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:      b.ID,
		UserID:     b.UserID,
		RaceID:     b.RaceID,
		DriverID:   b.DriverID,
		StakeCents: b.StakeCents,
		QuotedOdds: b.QuotedOdds,
	}); err != nil {
		s.log.Warn("publish bet_placed", zap.String("betId", b.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, toBetResponse(b))
}

// claim paga uma aposta vencedora: WON -> CLAIMED, exatamente uma vez.
// A transferência em si roda no payout-worker; aqui só nasce a intenção.
func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "id")
	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId required"})
		return
	}

	pay, b, err := s.repo.Claim(r.Context(), betID, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.publ.PublishPayoutRequested(r.Context(), events.PayoutRequested{
		PayoutID:    pay.ID,
		BetID:       b.ID,
		UserID:      b.UserID,
		RaceID:      b.RaceID,
		AmountCents: pay.AmountCents,
	}); err != nil {
		// intenção já persistida; o worker pode ser reapontado pela tabela payouts
		s.log.Error("publish payout_requested", zap.String("payoutId", pay.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, dto.ClaimResponse{
		BetID:       b.ID,
		PayoutID:    pay.ID,
		AmountCents: pay.AmountCents,
		Status:      b.Status,
	})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.repo.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(b))
}

func (s *Server) listUserBets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId required"})
		return
	}
	bets, err := s.repo.ListBetsByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponses(bets))
}

func (s *Server) listRaceBets(w http.ResponseWriter, r *http.Request) {
	bets, err := s.repo.ListBetsByRace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponses(bets))
}

func (s *Server) listRaces(w http.ResponseWriter, r *http.Request) {
	races, err := s.repo.ListRaces(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.RaceResponse, 0, len(races))
	for i := range races {
		out = append(out, toRaceResponse(&races[i], nil, s.params))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRace(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")
	race, err := s.repo.GetRace(r.Context(), raceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	drivers, err := s.repo.GetDrivers(r.Context(), raceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRaceResponse(race, drivers, s.params))
}

// getRaceOdds retorna as odds implícitas de todos os pilotos da corrida,
// preferencialmente do cache mantido pelo odds-worker.
func (s *Server) getRaceOdds(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")

	if s.cache != nil {
		var fromCache []dto.DriverResponse
		if ok, _ := s.cache.GetOdds(r.Context(), raceID, &fromCache); ok {
			writeJSON(w, http.StatusOK, fromCache)
			return
		}
	}

	race, err := s.repo.GetRace(r.Context(), raceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	drivers, err := s.repo.GetDrivers(r.Context(), raceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := toDriverResponses(drivers, race.TotalPoolCents, s.params)
	if s.cache != nil {
		_ = s.cache.SetOdds(r.Context(), raceID, out, 10*time.Second)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDriverOdds(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")
	driverID := chi.URLParam(r, "driverId")

	odd, err := s.repo.ImpliedOdds(r.Context(), raceID, driverID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OddsResponse{RaceID: raceID, DriverID: driverID, ImpliedOdds: odd})
}

// writeError mapeia os erros do motor para status HTTP:
// validação -> 400/404, estado -> 409, autorização -> 403.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrRaceNotFound), errors.Is(err, repo.ErrBetNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrUnknownDriver), errors.Is(err, repo.ErrInvalidStake):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrRaceNotOpen), errors.Is(err, repo.ErrNotClaimable),
		errors.Is(err, repo.ErrAlreadySettled), errors.Is(err, repo.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrNotOwner), errors.Is(err, repo.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		s.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toBetResponse(b *repo.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:         b.ID,
		UserID:        b.UserID,
		RaceID:        b.RaceID,
		DriverID:      b.DriverID,
		StakeCents:    b.StakeCents,
		QuotedOdds:    b.QuotedOdds,
		Status:        b.Status,
		PayoutCents:   b.PayoutCents,
		SettlementRef: b.SettlementRef,
		PlacedAt:      b.CreatedAt,
	}
}

func toBetResponses(bets []repo.Bet) []dto.BetResponse {
	out := make([]dto.BetResponse, 0, len(bets))
	for i := range bets {
		out = append(out, toBetResponse(&bets[i]))
	}
	return out
}

func toDriverResponses(drivers []repo.Driver, totalPool int64, p OddsParams) []dto.DriverResponse {
	out := make([]dto.DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, dto.DriverResponse{
			DriverID:        d.DriverID,
			Name:            d.Name,
			CarNumber:       d.CarNumber,
			Team:            d.Team,
			TotalStakeCents: d.TotalStakeCents,
			ImpliedOdds:     odds.Implied(d.TotalStakeCents, totalPool, p.FeeBps, p.OddsCeiling),
		})
	}
	return out
}

func toRaceResponse(r *repo.Race, drivers []repo.Driver, p OddsParams) dto.RaceResponse {
	resp := dto.RaceResponse{
		RaceID:          r.ID,
		Name:            r.Name,
		Circuit:         r.Circuit,
		Country:         r.Country,
		RaceDate:        r.RaceDate,
		CutoffTime:      r.CutoffTime,
		Status:          r.Status,
		WinningDriverID: r.WinningDriverID,
		WinOdds:         r.WinOdds,
		TotalPoolCents:  r.TotalPoolCents,
	}
	if drivers != nil {
		resp.Drivers = toDriverResponses(drivers, r.TotalPoolCents, p)
	}
	return resp
}

// writeJSON serializa a resposta em JSON e define o status HTTP.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
