// Package ledger queries the external blockchain REST endpoint for wallet
// balances. The portal only consumes a single numeric result.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// rawScale converts the chain's integer amounts into the human-readable
// unit: 1 token = 1,000,000 raw units.
var rawScale = decimal.NewFromInt(1_000_000)

// Client reads balances from a Cosmos-SDK style LCD endpoint.
type Client struct {
	http *resty.Client
}

// New creates a ledger client for the given API base URL.
func New(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)

	return &Client{http: httpClient}
}

type balancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

// Balance returns the wallet's total balance across denominations, scaled
// to the human-readable unit.
func (c *Client) Balance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	var payload balancesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s", walletAddress))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance request failed: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("balance query failed with status %d", resp.StatusCode())
	}

	total := decimal.Zero
	for _, b := range payload.Balances {
		amount, parseErr := decimal.NewFromString(b.Amount)
		if parseErr != nil {
			log.Warn().Str("denom", b.Denom).Str("amount", b.Amount).Msg("skipping unparseable balance entry")
			continue
		}
		total = total.Add(amount.Div(rawScale))
	}

	return total, nil
}
