// ABOUTME: HTTP client for the remote billing collaborator
// ABOUTME: Single-attempt requests with a bounded timeout, no retry or backoff

package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Billing errors
var (
	// ErrRemoteUnavailable is returned when the billing collaborator cannot be
	// reached or answers with a server error. Callers recover locally.
	ErrRemoteUnavailable = errors.New("billing service unavailable")
	// ErrTrialAlreadyUsed is returned when a trial was already started for
	// this installation.
	ErrTrialAlreadyUsed = errors.New("trial already used")
)

// Account is the billing collaborator's view of this installation.
type Account struct {
	Found          bool       `json:"found"`
	Paid           bool       `json:"paid"`
	PlanID         string     `json:"planId"`
	TrialStartedAt *time.Time `json:"trialStartedAt,omitempty"`
	Email          string     `json:"email,omitempty"`
	CustomerID     string     `json:"customerId,omitempty"`
}

// BillingClient abstracts the remote billing collaborator.
type BillingClient interface {
	// FetchAccount returns the account record, with Found=false when the
	// installation has no user record yet.
	FetchAccount(ctx context.Context) (*Account, error)
	// StartTrial registers a trial start and returns the updated record.
	StartTrial(ctx context.Context) (*Account, error)
}

// HTTPBillingClient talks to the billing service over HTTPS.
type HTTPBillingClient struct {
	baseURL   string
	installID string
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPBillingClient creates a billing client. The timeout bounds every
// request; entitlement checks must never stall feature gating.
func NewHTTPBillingClient(baseURL, installID string, timeout time.Duration) *HTTPBillingClient {
	return &HTTPBillingClient{
		baseURL:   baseURL,
		installID: installID,
		client:    &http.Client{Timeout: timeout},
		logger:    slog.Default().With("component", "billing"),
	}
}

// FetchAccount returns the account record for this installation.
func (c *HTTPBillingClient) FetchAccount(ctx context.Context) (*Account, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s", c.baseURL, c.installID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building account request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &Account{Found: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var acct Account
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return nil, fmt.Errorf("%w: decoding account: %v", ErrRemoteUnavailable, err)
	}
	acct.Found = true
	return &acct, nil
}

// StartTrial registers a trial start for this installation.
func (c *HTTPBillingClient) StartTrial(ctx context.Context) (*Account, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/trial", c.baseURL, c.installID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building trial request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return nil, ErrTrialAlreadyUsed
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var acct Account
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return nil, fmt.Errorf("%w: decoding trial response: %v", ErrRemoteUnavailable, err)
	}
	acct.Found = true
	return &acct, nil
}
