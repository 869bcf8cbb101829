package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/capability"
	"github.com/carriergate/slicepurchase/pkg/common"
)

// HTTPClientConfig configures the HTTP entitlement client.
type HTTPClientConfig struct {
	// Endpoint is the carrier entitlement server URL.
	Endpoint string
	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries uint64
}

// HTTPClient checks entitlement status against a carrier entitlement server.
// Transport errors are retried with exponential backoff; a response that
// cannot be parsed is reported as an error just like a transport failure.
type HTTPClient struct {
	cfg        HTTPClientConfig
	httpClient *http.Client
}

// NewHTTPClient creates an entitlement client for the given endpoint.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type checkRequest struct {
	Capability string `json:"capability"`
}

type checkResponse struct {
	EntitlementStatus string `json:"entitlementStatus"`
	ProvisionStatus   string `json:"provisionStatus"`
	PurchaseURL       string `json:"purchaseUrl"`
	UserData          string `json:"userData"`
	ContentType       string `json:"contentType"`
}

// CheckEntitlementStatus implements Checker.
func (c *HTTPClient) CheckEntitlementStatus(ctx context.Context, cap capability.Capability) (*Result, error) {
	scope := common.ChildScope(ctx, "CheckEntitlementStatus")
	defer scope.Finish()
	scope.SetAttribute("capability", cap.String())

	body, err := json.Marshal(checkRequest{Capability: cap.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entitlement request: %w", err)
	}

	var raw []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(scope.Ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			scope.Log.Warnf("entitlement request failed: %v, retrying...", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			scope.Log.Warnf("entitlement server returned %d, retrying...", resp.StatusCode)
			return fmt.Errorf("entitlement server error: %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("entitlement check rejected: %s", resp.Status))
		}

		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), scope.Ctx)); err != nil {
		scope.TraceError(err)
		return nil, fmt.Errorf("entitlement check failed for %s: %w", cap, err)
	}

	var parsed checkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		scope.TraceError(err)
		return nil, fmt.Errorf("failed to parse entitlement response: %w", err)
	}

	status, err := parseStatus(parsed.EntitlementStatus)
	if err != nil {
		scope.TraceError(err)
		return nil, fmt.Errorf("invalid entitlement response: %w", err)
	}
	provision, err := parseProvisionStatus(parsed.ProvisionStatus)
	if err != nil {
		scope.TraceError(err)
		return nil, fmt.Errorf("invalid entitlement response: %w", err)
	}

	logrus.Debugf("entitlement check for %s: status=%d provision=%d", cap, status, provision)

	return &Result{
		EntitlementStatus: status,
		ProvisionStatus:   provision,
		PurchaseURL:       parsed.PurchaseURL,
		UserData:          parsed.UserData,
		ContentType:       parsed.ContentType,
	}, nil
}
