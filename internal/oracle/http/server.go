package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/settlement"
	"github.com/harshithanethi/flare-bets-hub/internal/oracle/dto"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

// AuthorityHeader carrega a credencial do oráculo em cada requisição.
const AuthorityHeader = "X-Oracle-Key"

// Repo define as operações administrativas usadas pela API do oráculo.
type Repo interface {
	CreateRace(ctx context.Context, authority string, r *repo.Race) error
	AddDriver(ctx context.Context, authority string, d *repo.Driver) error
	CloseRace(ctx context.Context, authority, raceID string) (*repo.Race, error)
	SetOracle(ctx context.Context, authority, newAuthority string) error
	ReconcilePools(ctx context.Context, raceID string) (*repo.PoolAudit, error)
}

// Settler executa a liquidação (resolve + varredura das apostas).
type Settler interface {
	Settle(ctx context.Context, authority, raceID, winningDriverID string) (*settlement.Result, error)
}

// Publisher publica o evento de corrida liquidada.
type Publisher interface {
	PublishRaceSettled(ctx context.Context, e events.RaceSettled) error
}

/// Server expõe a API do oráculo: criação de corridas, fechamento e resultado.
// Toda rota exige a credencial do oráculo; quem valida é o repositório,
// antes de inspecionar qualquer estado.
type Server struct {
	log     *zap.Logger
	repo    Repo
	settler Settler
	publ    Publisher
}

func NewServer(log *zap.Logger, r Repo, s Settler, p Publisher) *Server {
	return &Server{log: log, repo: r, settler: s, publ: p}
}

// Router retorna o roteador HTTP com as rotas administrativas.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/races", s.createRace)
	r.Post("/v1/races/{id}/drivers", s.addDriver)
	r.Post("/v1/races/{id}/close", s.closeRace)
	r.Post("/v1/races/{id}/result", s.setRaceResult)
	r.Get("/v1/races/{id}/audit", s.auditRace)
	r.Post("/v1/oracle", s.setOracle)
	return r
}

// createRace registra uma nova corrida (status UPCOMING).
func (s *Server) createRace(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.RaceID == "" || req.Name == "" || req.CutoffTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	race := &repo.Race{
		ID:         req.RaceID,
		Name:       req.Name,
		Circuit:    req.Circuit,
		Country:    req.Country,
		RaceDate:   req.RaceDate,
		CutoffTime: req.CutoffTime,
	}
	if err := s.repo.CreateRace(r.Context(), r.Header.Get(AuthorityHeader), race); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.RaceResponse{RaceID: race.ID, Status: repo.RaceUpcoming})
}

// addDriver registra um piloto na corrida (pool zerado).
func (s *Server) addDriver(w http.ResponseWriter, r *http.Request) {
	var req dto.AddDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.DriverID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	d := &repo.Driver{
		RaceID:    chi.URLParam(r, "id"),
		DriverID:  req.DriverID,
		Name:      req.Name,
		CarNumber: req.CarNumber,
		Team:      req.Team,
	}
	if err := s.repo.AddDriver(r.Context(), r.Header.Get(AuthorityHeader), d); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// closeRace encerra o período de apostas. Idempotente.
func (s *Server) closeRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.repo.CloseRace(r.Context(), r.Header.Get(AuthorityHeader), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRaceResponse(race))
}

/// setRaceResult liquida a corrida: resolve o vencedor e varre todas as
// apostas pendentes. One-shot por corrida.
func (s *Server) setRaceResult(w http.ResponseWriter, r *http.Request) {
	var req dto.RaceResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.WinningDriverID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "winningDriverId required"})
		return
	}

	res, err := s.settler.Settle(r.Context(), r.Header.Get(AuthorityHeader), chi.URLParam(r, "id"), req.WinningDriverID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.publ.PublishRaceSettled(r.Context(), events.RaceSettled{
		RaceID:          res.Race.ID,
		WinningDriverID: res.Race.WinningDriverID,
		WinOdds:         res.Race.WinOdds,
		TotalPoolCents:  res.Race.TotalPoolCents,
		BetsWon:         res.Won,
		BetsLost:        res.Lost,
	}); err != nil {
		s.log.Warn("publish race_settled", zap.String("raceId", res.Race.ID), zap.Error(err))
	}

	resp := dto.SettlementResponse{
		Race:    toRaceResponse(res.Race),
		Won:     res.Won,
		Lost:    res.Lost,
		Resumed: res.Resumed,
	}
	for _, b := range res.Bets {
		resp.Bets = append(resp.Bets, dto.ResolvedBet{
			BetID:       b.ID,
			UserID:      b.UserID,
			DriverID:    b.DriverID,
			StakeCents:  b.StakeCents,
			Status:      b.Status,
			PayoutCents: b.PayoutCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// auditRace reconstrói os pools a partir da tabela de apostas e compara com
// os totais do ledger.
func (s *Server) auditRace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	audit, err := s.repo.ReconcilePools(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

// setOracle rotaciona a autoridade do oráculo.
func (s *Server) setOracle(w http.ResponseWriter, r *http.Request) {
	var req dto.SetOracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.NewAuthority == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "new_authority required"})
		return
	}
	if err := s.repo.SetOracle(r.Context(), r.Header.Get(AuthorityHeader), req.NewAuthority); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"UPDATED"}`))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrRaceNotFound), errors.Is(err, repo.ErrBetNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrUnknownDriver):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrAlreadySettled), errors.Is(err, repo.ErrRaceNotOpen):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toRaceResponse(r *repo.Race) dto.RaceResponse {
	return dto.RaceResponse{
		RaceID:          r.ID,
		Status:          r.Status,
		WinningDriverID: r.WinningDriverID,
		WinOdds:         r.WinOdds,
		TotalPoolCents:  r.TotalPoolCents,
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
