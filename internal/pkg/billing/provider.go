package billing

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

	"github.com/google/uuid"
	"github.com/sellora/sellora/internal/pkg/env"
)

const defaultProviderAPIBaseURL = "https://api.payment-provider.example/v1"

// ProviderClient talks to the external payment provider over HTTP. All calls
// carry a bounded timeout; create calls carry an idempotency key so retries
// after a timeout never double-create.
type ProviderClient struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

// NewProviderClientFromEnv builds a provider client from environment config.
func NewProviderClientFromEnv() *ProviderClient {
	return &ProviderClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("BILLING_API_BASE_URL", defaultProviderAPIBaseURL), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("BILLING_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type providerCustomerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type providerSubscriptionResponse struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	PendingAuthToken   string `json:"pending_auth_token,omitempty"`
}

func (r *providerSubscriptionResponse) toSubscription() *ProviderSubscription {
	sub := &ProviderSubscription{
		Ref:              strings.TrimSpace(r.ID),
		Status:           strings.ToLower(strings.TrimSpace(r.Status)),
		PendingAuthToken: strings.TrimSpace(r.PendingAuthToken),
	}
	if r.CurrentPeriodStart > 0 {
		t := time.Unix(r.CurrentPeriodStart, 0).UTC()
		sub.CurrentPeriodStart = &t
	}
	if r.CurrentPeriodEnd > 0 {
		t := time.Unix(r.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	return sub
}

// CreateOrGetCustomer looks up a customer by email and creates one when
// missing. The provider keys the lookup by email, which makes the whole call
// idempotent per seller.
func (c *ProviderClient) CreateOrGetCustomer(ctx context.Context, sellerRef, email, name string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("customer email is required")
	}

	body := map[string]interface{}{
		"email": email,
		"name":  strings.TrimSpace(name),
		"metadata": map[string]string{
			"seller_ref": sellerRef,
		},
	}

	var out providerCustomerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/customers", body, true, &out); err != nil {
		return "", &ProviderError{Op: "create_customer", StatusCode: statusCodeOf(err), Err: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", &ProviderError{Op: "create_customer", Err: errors.New("provider returned empty customer id")}
	}
	return out.ID, nil
}

// CreateSubscription opens a new provider subscription for a customer.
func (c *ProviderClient) CreateSubscription(ctx context.Context, customerRef, priceRef string, metadata map[string]string) (*ProviderSubscription, error) {
	if strings.TrimSpace(customerRef) == "" || strings.TrimSpace(priceRef) == "" {
		return nil, errors.New("customer ref and price ref are required")
	}

	body := map[string]interface{}{
		"customer": customerRef,
		"price":    priceRef,
		"metadata": metadata,
	}

	var out providerSubscriptionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/subscriptions", body, true, &out); err != nil {
		return nil, &ProviderError{Op: "create_subscription", StatusCode: statusCodeOf(err), Err: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, &ProviderError{Op: "create_subscription", Err: errors.New("provider returned empty subscription id")}
	}
	return out.toSubscription(), nil
}

// UpdateSubscriptionPrice moves an existing subscription to a new price.
// Proration is enabled only for immediate changes.
func (c *ProviderClient) UpdateSubscriptionPrice(ctx context.Context, subscriptionRef, newPriceRef string, prorate bool) (*ProviderSubscription, error) {
	if strings.TrimSpace(subscriptionRef) == "" || strings.TrimSpace(newPriceRef) == "" {
		return nil, errors.New("subscription ref and price ref are required")
	}

	prorationMode := "none"
	if prorate {
		prorationMode = "create_prorations"
	}
	body := map[string]interface{}{
		"price":          newPriceRef,
		"proration_mode": prorationMode,
	}

	var out providerSubscriptionResponse
	path := "/subscriptions/" + subscriptionRef
	if err := c.doJSON(ctx, http.MethodPost, path, body, false, &out); err != nil {
		return nil, &ProviderError{Op: "update_subscription", StatusCode: statusCodeOf(err), Err: err}
	}
	return out.toSubscription(), nil
}

// CancelSubscription cancels immediately or flags cancellation at period end.
func (c *ProviderClient) CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (string, error) {
	if strings.TrimSpace(subscriptionRef) == "" {
		return "", errors.New("subscription ref is required")
	}

	var out providerSubscriptionResponse
	if atPeriodEnd {
		body := map[string]interface{}{"cancel_at_period_end": true}
		if err := c.doJSON(ctx, http.MethodPost, "/subscriptions/"+subscriptionRef, body, false, &out); err != nil {
			return "", &ProviderError{Op: "cancel_subscription", StatusCode: statusCodeOf(err), Err: err}
		}
	} else {
		if err := c.doJSON(ctx, http.MethodDelete, "/subscriptions/"+subscriptionRef, nil, false, &out); err != nil {
			return "", &ProviderError{Op: "cancel_subscription", StatusCode: statusCodeOf(err), Err: err}
		}
	}
	return out.Status, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func statusCodeOf(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func (c *ProviderClient) doJSON(ctx context.Context, method, path string, body interface{}, idempotent bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
