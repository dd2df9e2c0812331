package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// Client talks to the payment processor's REST API over HTTPS with bearer
// authentication. Transport failures get a single immediate retry; anything
// beyond that surfaces as ErrUnavailable.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient creates a processor client. httpClient may be nil, in which case
// a client with a 10s timeout is used.
func NewClient(baseURL, secretKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      httpClient,
	}
}

type createSessionRequest struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	PayerEmail string `json:"customer_email,omitempty"`
}

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	AmountCharged int64  `json:"amount_total"`
	Customer      *struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Address *struct {
			Line1      string `json:"line1"`
			City       string `json:"city"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"customer_details"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates an out-of-band payment session for the given amount.
func (c *Client) CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error) {
	body, err := json.Marshal(createSessionRequest{
		Amount:     p.Amount,
		Currency:   p.Currency,
		SuccessURL: p.SuccessURL,
		CancelURL:  p.CancelURL,
		PayerEmail: p.PayerEmail,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal session request")
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.Errorf("gateway rejected session: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.ID == "" || resp.URL == "" {
		return nil, errors.New("gateway returned session without id or url")
	}
	return &Session{ID: resp.ID, RedirectURL: resp.URL}, nil
}

// RetrieveSession resolves a session id to its payment status and payer
// details.
func (c *Client) RetrieveSession(ctx context.Context, id string) (*SessionDetails, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+id, nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.Errorf("gateway rejected retrieve: %s: %s", resp.Error.Code, resp.Error.Message)
	}

	details := &SessionDetails{
		ID:            resp.ID,
		Status:        StatusIncomplete,
		AmountCharged: resp.AmountCharged,
	}
	if resp.Status == "complete" || resp.Status == "completed" || resp.Status == "paid" {
		details.Status = StatusCompleted
	}
	if cd := resp.Customer; cd != nil {
		details.PayerEmail = cd.Email
		details.PayerName = cd.Name
		if a := cd.Address; a != nil {
			details.PayerAddress = &PayerAddress{
				Line1:    a.Line1,
				City:     a.City,
				Postcode: a.PostalCode,
				Country:  a.Country,
			}
		}
	}
	return details, nil
}

// do performs one request with a single immediate retry on transport errors.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*sessionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.once(ctx, method, path, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, path string, body []byte) (*sessionResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "%s %s: %v", method, path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 500 {
		return nil, errors.Wrapf(ErrUnavailable, "%s %s: status %d", method, path, httpResp.StatusCode)
	}

	var parsed sessionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "decode gateway response")
	}
	if httpResp.StatusCode >= 400 && parsed.Error == nil {
		return nil, fmt.Errorf("gateway returned status %d", httpResp.StatusCode)
	}
	return &parsed, nil
}
