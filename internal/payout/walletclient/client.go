package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	walletdto "github.com/harshithanethi/flare-bets-hub/internal/wallet/dto"
)

// Client fala com o wallet-service por HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Credit aplica o crédito de prêmio na carteira do usuário. A idempotência
// fica no wallet-service, chaveada pelo externalRef (betId).
func (c *Client) Credit(ctx context.Context, userID string, cents int64, externalRef string) (walletID string, duplicate bool, err error) {
	body, _ := json.Marshal(walletdto.CreditRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/credit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", false, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", false, fmt.Errorf("wallet credit http %d", res.StatusCode)
	}
	var out walletdto.CreditResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", false, err
	}
	return out.WalletID, out.Duplicate, nil
}
