package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
)

// StatusClient calls eSewa's transaction status API, the source of truth
// when double-checking a redirect/webhook confirmation.
type StatusClient struct {
	baseURL     string
	productCode string
	httpClient  *http.Client
}

func NewStatusClient(baseURL, productCode string) *StatusClient {
	return &StatusClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		productCode: productCode,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type statusResponse struct {
	ProductCode     string  `json:"product_code"`
	TransactionUUID string  `json:"transaction_uuid"`
	TotalAmount     float64 `json:"total_amount"`
	Status          string  `json:"status"`
	RefID           *string `json:"ref_id"`
}

// CheckStatus fetches the gateway-side status for a transaction. One retry
// at most: anything beyond that must lean on the settlement idempotency
// guard rather than on the transport.
func (c *StatusClient) CheckStatus(ctx context.Context, transactionUUID, totalAmount string) (domain.GatewayStatus, error) {
	u, err := url.Parse(c.baseURL + "/api/epay/transaction/status/")
	if err != nil {
		return "", fmt.Errorf("status url: %w", err)
	}
	q := u.Query()
	q.Set("product_code", c.productCode)
	q.Set("total_amount", totalAmount)
	q.Set("transaction_uuid", transactionUUID)
	u.RawQuery = q.Encode()

	var out statusResponse
	backoff := retry.WithMaxRetries(1, retry.NewConstant(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("esewa status http %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("esewa status http %d: %s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode esewa status response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	st := domain.GatewayStatus(strings.ToUpper(strings.TrimSpace(out.Status)))
	if !domain.KnownGatewayStatus(st) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, st)
	}
	return st, nil
}
