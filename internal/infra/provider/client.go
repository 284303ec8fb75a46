package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ivankudzin/payflow/internal/infra/httpclient"
)

var (
	ErrSessionCreation = errors.New("provider session creation failed")
)

// Session is the provider-side checkout session. RedirectURL is where the
// buyer finishes payment; ID is the join key the provider echoes in webhooks.
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type CreateSessionInput struct {
	Description string
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Client is the payment-provider capability injected into checkout. It is
// constructed once at startup; tests substitute a fake.
type Client interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (Session, error)
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		hc:      httpclient.New(timeout),
	}
}

func (c *HTTPClient) CreateSession(ctx context.Context, in CreateSessionInput) (Session, error) {
	if c.baseURL == "" {
		return Session{}, fmt.Errorf("provider base url is empty: %w", ErrSessionCreation)
	}
	if in.AmountMinor <= 0 || strings.TrimSpace(in.Currency) == "" {
		return Session{}, fmt.Errorf("invalid session amount: %w", ErrSessionCreation)
	}

	body, err := json.Marshal(map[string]any{
		"description": in.Description,
		"amount":      in.AmountMinor,
		"currency":    strings.ToLower(strings.TrimSpace(in.Currency)),
		"success_url": in.SuccessURL,
		"cancel_url":  in.CancelURL,
		"metadata":    in.Metadata,
	})
	if err != nil {
		return Session{}, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("call provider: %v: %w", err, ErrSessionCreation)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, fmt.Errorf("provider returned status %d: %w", resp.StatusCode, ErrSessionCreation)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("decode session response: %v: %w", err, ErrSessionCreation)
	}
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.RedirectURL) == "" {
		return Session{}, fmt.Errorf("provider returned no usable redirect: %w", ErrSessionCreation)
	}

	return session, nil
}
