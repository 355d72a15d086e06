package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/wallet/dto"
)

type fakeRepo struct {
	balances map[string]int64
	credits  map[string]bool // userID+"|"+externalRef
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: map[string]int64{}, credits: map[string]bool{}}
}

func (f *fakeRepo) GetOrCreateWallet(_ context.Context, userID string) (string, int64, error) {
	return "w-" + userID, f.balances[userID], nil
}

func (f *fakeRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (string, int64, error) {
	f.balances[userID] += amount
	return "w-" + userID, f.balances[userID], nil
}

func (f *fakeRepo) Credit(_ context.Context, userID string, amount int64, externalRef string) (string, int64, bool, error) {
	key := userID + "|" + externalRef
	if f.credits[key] {
		return "w-" + userID, f.balances[userID], true, nil
	}
	f.credits[key] = true
	f.balances[userID] += amount
	return "w-" + userID, f.balances[userID], false, nil
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDeposit(t *testing.T) {
	h := NewServer(zap.NewNop(), newFakeRepo()).Router()

	rec := post(t, h, "/wallet/deposit", dto.DepositRequest{UserID: "u1", AmountCents: 5000})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(5000), resp.BalanceCents)
}

func TestDeposit_RejectsNonPositive(t *testing.T) {
	h := NewServer(zap.NewNop(), newFakeRepo()).Router()

	rec := post(t, h, "/wallet/deposit", dto.DepositRequest{UserID: "u1", AmountCents: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCredit_IdempotentByExternalRef(t *testing.T) {
	repo := newFakeRepo()
	h := NewServer(zap.NewNop(), repo).Router()

	req := dto.CreditRequest{UserID: "u1", AmountCents: 200, ExternalRef: "bet-1"}

	rec := post(t, h, "/wallet/credit", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.CreditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Duplicate)
	assert.Equal(t, int64(200), resp.BalanceCents)

	// reentrega da mesma mensagem não duplica o crédito
	rec = post(t, h, "/wallet/credit", req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Equal(t, int64(200), resp.BalanceCents)
}

func TestGetWallet_RequiresUserID(t *testing.T) {
	h := NewServer(zap.NewNop(), newFakeRepo()).Router()

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
