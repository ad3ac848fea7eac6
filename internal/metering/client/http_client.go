package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lotshot/lotshot/internal/clock"
	"github.com/lotshot/lotshot/internal/config"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ClientParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
}

// HTTPClient talks to the metering vendor's REST API.
type HTTPClient struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	log           *zap.Logger
	clk           clock.Clock
	retryAttempts int
	retryDelay    time.Duration
}

func New(p ClientParam) meteringdomain.Client {
	return &HTTPClient{
		baseURL: p.Config.Metering.BaseURL,
		apiKey:  p.Config.Metering.APIKey,
		httpClient: &http.Client{
			Timeout: p.Config.Metering.Timeout,
		},
		log:           p.Log.Named("metering.client"),
		clk:           p.Clock,
		retryAttempts: p.Config.Metering.RetryAttempts,
		retryDelay:    p.Config.Metering.RetryDelay,
	}
}

func (c *HTTPClient) SubmitUsageEvent(ctx context.Context, req meteringdomain.SubmitUsageEventRequest) (*meteringdomain.UsageEvent, error) {
	if strings.TrimSpace(req.MeterCode) == "" {
		return nil, meteringdomain.ErrInvalidMeterCode
	}
	if strings.TrimSpace(req.CustomerRef) == "" {
		return nil, meteringdomain.ErrInvalidCustomerRef
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, meteringdomain.ErrInvalidIdempotencyKey
	}

	body := map[string]any{
		"meter_code":   req.MeterCode,
		"customer_ref": req.CustomerRef,
		"value":        req.Value,
		"timestamp":    req.Timestamp.UTC().Format(time.RFC3339),
	}

	var event meteringdomain.UsageEvent
	err := retryDo(ctx, c.clk, c.retryAttempts, c.retryDelay, func() error {
		return c.do(ctx, http.MethodPost, "/v1/usage_events", req.IdempotencyKey, body, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) AggregatedUsage(ctx context.Context, req meteringdomain.AggregatedUsageRequest) (int64, error) {
	if strings.TrimSpace(req.MeterCode) == "" {
		return 0, meteringdomain.ErrInvalidMeterCode
	}
	if strings.TrimSpace(req.CustomerRef) == "" {
		return 0, meteringdomain.ErrInvalidCustomerRef
	}

	// The event-aggregation endpoint, not the draft-invoice preview.
	// Draft invoices may omit not-yet-finalized metered usage and have
	// undercounted in the past.
	path := fmt.Sprintf("/v1/usage_events/aggregate?%s", url.Values{
		"meter_code":   {req.MeterCode},
		"customer_ref": {req.CustomerRef},
		"period_start": {req.PeriodStart.UTC().Format(time.RFC3339)},
		"period_end":   {req.PeriodEnd.UTC().Format(time.RFC3339)},
	}.Encode())

	var out struct {
		Total int64 `json:"total"`
	}
	err := retryDo(ctx, c.clk, c.retryAttempts, c.retryDelay, func() error {
		return c.do(ctx, http.MethodGet, path, "", nil, &out)
	})
	if err != nil {
		return 0, err
	}
	return out.Total, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) apiError(resp *http.Response) error {
	apiErr := &meteringdomain.APIError{Status: resp.StatusCode}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("metering auth failure", zap.Int("status", resp.StatusCode))
	case http.StatusTooManyRequests:
		c.log.Warn("metering rate limited")
	}
	return apiErr
}
