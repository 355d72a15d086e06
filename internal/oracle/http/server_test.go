package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/settlement"
	"github.com/harshithanethi/flare-bets-hub/internal/oracle/dto"
	"github.com/harshithanethi/flare-bets-hub/pkg/contracts/events"
)

const oracleKey = "oracle-key"

type fakeAdmin struct {
	races   map[string]*repo.Race
	drivers map[string][]string
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{races: map[string]*repo.Race{}, drivers: map[string][]string{}}
}

func (f *fakeAdmin) auth(authority string) error {
	if authority != oracleKey {
		return repo.ErrNotAuthorized
	}
	return nil
}

func (f *fakeAdmin) CreateRace(_ context.Context, authority string, r *repo.Race) error {
	if err := f.auth(authority); err != nil {
		return err
	}
	r.Status = repo.RaceUpcoming
	f.races[r.ID] = r
	return nil
}

func (f *fakeAdmin) AddDriver(_ context.Context, authority string, d *repo.Driver) error {
	if err := f.auth(authority); err != nil {
		return err
	}
	if _, ok := f.races[d.RaceID]; !ok {
		return repo.ErrRaceNotFound
	}
	f.drivers[d.RaceID] = append(f.drivers[d.RaceID], d.DriverID)
	return nil
}

func (f *fakeAdmin) CloseRace(_ context.Context, authority, raceID string) (*repo.Race, error) {
	if err := f.auth(authority); err != nil {
		return nil, err
	}
	r, ok := f.races[raceID]
	if !ok {
		return nil, repo.ErrRaceNotFound
	}
	if r.Status == repo.RaceUpcoming {
		r.Status = repo.RaceClosed
	}
	cp := *r
	return &cp, nil
}

func (f *fakeAdmin) SetOracle(_ context.Context, authority, _ string) error {
	return f.auth(authority)
}

func (f *fakeAdmin) ReconcilePools(_ context.Context, raceID string) (*repo.PoolAudit, error) {
	if _, ok := f.races[raceID]; !ok {
		return nil, repo.ErrRaceNotFound
	}
	return &repo.PoolAudit{RaceID: raceID, Consistent: true}, nil
}

type fakeSettler struct {
	admin *fakeAdmin
	fail  error
}

func (f *fakeSettler) Settle(_ context.Context, authority, raceID, winner string) (*settlement.Result, error) {
	if authority != oracleKey {
		return nil, repo.ErrNotAuthorized
	}
	if f.fail != nil {
		return nil, f.fail
	}
	race, ok := f.admin.races[raceID]
	if !ok {
		return nil, repo.ErrRaceNotFound
	}
	if race.Status == repo.RaceSettled {
		return nil, repo.ErrAlreadySettled
	}
	found := false
	for _, d := range f.admin.drivers[raceID] {
		if d == winner {
			found = true
		}
	}
	if !found {
		return nil, repo.ErrUnknownDriver
	}
	race.Status = repo.RaceSettled
	race.WinningDriverID = winner
	race.WinOdds = 2.0
	cp := *race
	return &settlement.Result{
		Race: &cp,
		Bets: []repo.Bet{{ID: "b1", UserID: "u1", DriverID: winner, StakeCents: 100, Status: repo.BetWon, PayoutCents: 200}},
		Won:  1,
	}, nil
}

type fakePublisher struct {
	settled []events.RaceSettled
}

func (f *fakePublisher) PublishRaceSettled(_ context.Context, e events.RaceSettled) error {
	f.settled = append(f.settled, e)
	return nil
}

func setup() (*fakeAdmin, *fakePublisher, http.Handler) {
	admin := newFakeAdmin()
	pub := &fakePublisher{}
	srv := NewServer(zap.NewNop(), admin, &fakeSettler{admin: admin}, pub)
	return admin, pub, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(AuthorityHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateRace_RequiresOracleKey(t *testing.T) {
	_, _, h := setup()
	rec := doJSON(t, h, http.MethodPost, "/v1/races", "wrong-key", dto.CreateRaceRequest{
		RaceID: "race-1", Name: "Bahrain GP", CutoffTime: someTime(),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRace_OK(t *testing.T) {
	admin, _, h := setup()
	rec := doJSON(t, h, http.MethodPost, "/v1/races", oracleKey, dto.CreateRaceRequest{
		RaceID: "race-1", Name: "Bahrain GP", Circuit: "Sakhir", CutoffTime: someTime(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, admin.races, "race-1")
}

func TestSetRaceResult_SettlesAndPublishes(t *testing.T) {
	admin, pub, h := setup()
	admin.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.RaceClosed, TotalPoolCents: 200}
	admin.drivers["race-1"] = []string{"VER", "NOR"}

	rec := doJSON(t, h, http.MethodPost, "/v1/races/race-1/result", oracleKey,
		dto.RaceResultRequest{WinningDriverID: "VER"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.SettlementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SETTLED", resp.Race.Status)
	assert.Equal(t, "VER", resp.Race.WinningDriverID)
	assert.Equal(t, 1, resp.Won)
	require.Len(t, resp.Bets, 1)
	assert.Equal(t, int64(200), resp.Bets[0].PayoutCents)

	require.Len(t, pub.settled, 1)
	assert.Equal(t, "race-1", pub.settled[0].RaceID)
	assert.Equal(t, "VER", pub.settled[0].WinningDriverID)
}

func TestSetRaceResult_SecondCallConflicts(t *testing.T) {
	admin, pub, h := setup()
	admin.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.RaceClosed}
	admin.drivers["race-1"] = []string{"VER"}

	rec := doJSON(t, h, http.MethodPost, "/v1/races/race-1/result", oracleKey,
		dto.RaceResultRequest{WinningDriverID: "VER"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/races/race-1/result", oracleKey,
		dto.RaceResultRequest{WinningDriverID: "VER"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, pub.settled, 1)
}

func TestSetRaceResult_UnknownDriver(t *testing.T) {
	admin, _, h := setup()
	admin.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.RaceClosed}
	admin.drivers["race-1"] = []string{"VER"}

	rec := doJSON(t, h, http.MethodPost, "/v1/races/race-1/result", oracleKey,
		dto.RaceResultRequest{WinningDriverID: "XXX"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseRace_Idempotent(t *testing.T) {
	admin, _, h := setup()
	admin.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.RaceUpcoming}

	rec := doJSON(t, h, http.MethodPost, "/v1/races/race-1/close", oracleKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// fechar de novo é no-op, não erro
	rec = doJSON(t, h, http.MethodPost, "/v1/races/race-1/close", oracleKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.RaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CLOSED", resp.Status)
}

func TestAuditRace(t *testing.T) {
	admin, _, h := setup()
	admin.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.RaceUpcoming}

	rec := doJSON(t, h, http.MethodGet, "/v1/races/race-1/audit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var audit repo.PoolAudit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.True(t, audit.Consistent)
}

func someTime() time.Time { return time.Now().Add(48 * time.Hour) }
