package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"
	"itcwallet/infrastructure/observability"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Client talks to the payout processor's REST API.
// Amounts cross the wire in minor currency units.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	// budget bounds all attempts of one call, retries included
	budget  time.Duration
	metrics *observability.MetricsProvider
}

var _ interfaces.PayoutProcessor = (*Client)(nil)

// NewClient creates a processor client. timeout bounds each call including retries.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.MetricsProvider) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		budget:     timeout,
		metrics:    metrics,
	}
}

type accountResponse struct {
	ID                     string   `json:"id"`
	DetailsSubmitted       bool     `json:"details_submitted"`
	PayoutsEnabled         bool     `json:"payouts_enabled"`
	InstantPayoutsEligible bool     `json:"instant_payouts_eligible"`
	RequirementsDue        []string `json:"requirements_due"`
}

func (a *accountResponse) toEntity() *entities.ProcessorAccount {
	return &entities.ProcessorAccount{
		ID:                     a.ID,
		DetailsSubmitted:       a.DetailsSubmitted,
		PayoutsEnabled:         a.PayoutsEnabled,
		InstantPayoutsEligible: a.InstantPayoutsEligible,
		RequirementsDue:        a.RequirementsDue,
	}
}

type transferResponse struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
	Reversed    bool   `json:"reversed"`
}

func (t *transferResponse) toEntity() *entities.ProcessorTransfer {
	return &entities.ProcessorTransfer{
		ID:          t.ID,
		Amount:      fromMinorUnits(t.Amount),
		Destination: t.Destination,
		Reversed:    t.Reversed,
	}
}

type payoutResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ArrivalDate int64  `json:"arrival_date"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type request struct {
	method         string
	path           string
	body           any
	idempotencyKey string
	account        string
}

// CreateAccount creates a destination account for the user
func (c *Client) CreateAccount(ctx context.Context, userID, email, country string) (*entities.ProcessorAccount, error) {
	var resp accountResponse
	err := c.call(ctx, "CreateAccount", request{
		method: http.MethodPost,
		path:   "/v1/accounts",
		body: map[string]any{
			"email":    email,
			"country":  country,
			"metadata": map[string]string{"user_id": userID},
		},
		idempotencyKey: "account:" + userID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toEntity(), nil
}

// GetAccount fetches a destination account
func (c *Client) GetAccount(ctx context.Context, accountID string) (*entities.ProcessorAccount, error) {
	var resp accountResponse
	err := c.call(ctx, "GetAccount", request{
		method: http.MethodGet,
		path:   "/v1/accounts/" + url.PathEscape(accountID),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toEntity(), nil
}

// CreateTransfer moves funds from the platform balance to a destination account
func (c *Client) CreateTransfer(ctx context.Context, req entities.TransferRequest) (*entities.ProcessorTransfer, error) {
	var resp transferResponse
	err := c.call(ctx, "CreateTransfer", request{
		method: http.MethodPost,
		path:   "/v1/transfers",
		body: map[string]any{
			"amount":      toMinorUnits(req.Amount),
			"currency":    req.Currency,
			"destination": req.DestinationAccountID,
			"metadata":    req.Metadata,
		},
		idempotencyKey: req.IdempotencyKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toEntity(), nil
}

// FindTransfer looks a transfer up by its idempotency key, returning nil if none exists
func (c *Client) FindTransfer(ctx context.Context, idempotencyKey string) (*entities.ProcessorTransfer, error) {
	var resp struct {
		Data []transferResponse `json:"data"`
	}
	err := c.call(ctx, "FindTransfer", request{
		method: http.MethodGet,
		path:   "/v1/transfers?idempotency_key=" + url.QueryEscape(idempotencyKey),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].toEntity(), nil
}

// ReverseTransfer returns a transfer's funds to the platform balance
func (c *Client) ReverseTransfer(ctx context.Context, transferID string) error {
	return c.call(ctx, "ReverseTransfer", request{
		method:         http.MethodPost,
		path:           "/v1/transfers/" + url.PathEscape(transferID) + "/reversals",
		idempotencyKey: "reversal:" + transferID,
	}, nil)
}

// CreatePayout pays out a destination account's balance to the user's bank or card
func (c *Client) CreatePayout(ctx context.Context, req entities.PayoutRequest) (*entities.ProcessorPayout, error) {
	var resp payoutResponse
	err := c.call(ctx, "CreatePayout", request{
		method: http.MethodPost,
		path:   "/v1/payouts",
		body: map[string]any{
			"amount":   toMinorUnits(req.Amount),
			"currency": req.Currency,
			"method":   string(req.Method),
			"metadata": req.Metadata,
		},
		idempotencyKey: req.IdempotencyKey,
		account:        req.DestinationAccountID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	payout := &entities.ProcessorPayout{ID: resp.ID, Status: resp.Status}
	if resp.ArrivalDate > 0 {
		arrival := time.Unix(resp.ArrivalDate, 0).UTC()
		payout.ArrivalDate = &arrival
	}
	return payout, nil
}

// call performs the request, retrying transient failures with exponential backoff
// until the call budget is spent
func (c *Client) call(ctx context.Context, op string, req request, out any) (err error) {
	defer c.metrics.MeasureProcessorCall(op)(&err)

	var body []byte
	if req.body != nil {
		if body, err = json.Marshal(req.body); err != nil {
			return &entities.ProcessorError{Op: op, Message: "failed to encode request", Err: err}
		}
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, op, req, body, out)
		var procErr *entities.ProcessorError
		if errors.As(err, &procErr) && !procErr.Transient {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			log.WithFields(log.Fields{
				"op":      op,
				"attempt": attempt,
				"error":   err,
			}).Warn("Transient payout processor error")
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxElapsedTime(c.budget),
	)

	var procErr *entities.ProcessorError
	if err != nil && !errors.As(err, &procErr) {
		// the context ended between attempts
		return &entities.ProcessorError{Op: op, Code: "timeout", Transient: true, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, op string, req request, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return &entities.ProcessorError{Op: op, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.idempotencyKey)
	}
	if req.account != "" {
		httpReq.Header.Set("Processor-Account", req.account)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// network failures and timeouts leave the outcome unknown
		return &entities.ProcessorError{Op: op, Code: "network_error", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &entities.ProcessorError{Op: op, Code: "network_error", Transient: true, Err: err}
	}

	if resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return &entities.ProcessorError{Op: op, Message: "invalid response body", Err: err}
		}
	}
	return nil
}

func statusError(op string, status int, payload []byte) *entities.ProcessorError {
	var body errorResponse
	_ = json.Unmarshal(payload, &body)

	procErr := &entities.ProcessorError{
		Op:        op,
		Code:      body.Error.Code,
		Message:   body.Error.Message,
		Transient: status == http.StatusTooManyRequests || status >= 500,
	}
	if procErr.Message == "" {
		procErr.Message = fmt.Sprintf("status %d", status)
	}
	return procErr
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return entities.RoundCurrency(amount).Shift(2).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
