package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mverbeek/windmask-monitor/internal/models"
	"github.com/mverbeek/windmask-monitor/internal/observability"
)

// DirectionClient fetches the most recent wind-direction observation for a
// station from the upstream time-series API.
type DirectionClient interface {
	LatestDirection(ctx context.Context, stationID string, lookback time.Duration) (models.Observation, error)
	ValidateToken(ctx context.Context) error
}

var (
	ErrMissingToken    = errors.New("missing access token")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrStationNotFound = errors.New("station not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
)

// EDRClient calls a KNMI EDR collection endpoint. One outbound request per
// invocation; failures propagate to the caller without retries, each
// scheduled refresh is an independent attempt.
type EDRClient struct {
	token   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewEDRClient creates an EDRClient. baseURL is the collection root, e.g.
// https://api.dataplatform.knmi.nl/edr/v1/collections/10-minute-in-situ-meteorological-observations.
// An empty token is a configuration error and rejected here.
func NewEDRClient(token, baseURL string, timeout time.Duration) (*EDRClient, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: set KNMI_EDR_TOKEN or config/secrets.yaml knmi_edr_token", ErrMissingToken)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EDRClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// coverageResponse mirrors the EDR CoverageCollection shape we consume.
// Missing keys decode to zero values, so a sparse or malformed document
// degrades to "no data" instead of an error.
type coverageResponse struct {
	Coverages []coverage `json:"coverages"`
}

type coverage struct {
	Domain struct {
		Axes struct {
			T struct {
				Values []string `json:"values"`
			} `json:"t"`
		} `json:"axes"`
	} `json:"domain"`
	Ranges map[string]coverageRange `json:"ranges"`
}

type coverageRange struct {
	Values []*float64 `json:"values"`
	Data   []*float64 `json:"data"`
}

// samples returns whichever sample slice the coverage carries. Some EDR
// deployments emit "values", others "data".
func (r coverageRange) samples() []*float64 {
	if len(r.Values) > 0 {
		return r.Values
	}
	return r.Data
}

// LatestDirection queries the trailing lookback window ending now (UTC) and
// returns the newest non-null dd sample with its measurement timestamp.
// A valid response with no usable sample returns an Observation carrying
// only RetrievedAt and a nil error.
func (c *EDRClient) LatestDirection(ctx context.Context, stationID string, lookback time.Duration) (models.Observation, error) {
	start := time.Now()
	retrievedAt := start.UTC()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, stationID, retrievedAt.Add(-lookback), retrievedAt)
	if err != nil {
		observability.EDRAPICallsTotal.WithLabelValues("error").Inc()
		return models.Observation{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.EDRAPICallsTotal.WithLabelValues("error").Inc()
		observability.EDRAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Observation{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Observation{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.EDRAPICallsTotal.WithLabelValues(status).Inc()
	observability.EDRAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return models.Observation{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Observation{}, fmt.Errorf("read response body: %w", err)
	}

	var cov coverageResponse
	if err := json.Unmarshal(body, &cov); err != nil {
		return models.Observation{}, fmt.Errorf("parse response: %w", err)
	}

	return latestFromCoverages(cov, retrievedAt), nil
}

// latestFromCoverages scans coverages newest-to-oldest, then samples within
// each coverage newest-to-oldest, skipping nulls. The first non-null dd
// sample wins.
func latestFromCoverages(cov coverageResponse, retrievedAt time.Time) models.Observation {
	obs := models.Observation{RetrievedAt: retrievedAt}

	for i := len(cov.Coverages) - 1; i >= 0; i-- {
		c := cov.Coverages[i]
		values := c.Ranges["dd"].samples()
		times := c.Domain.Axes.T.Values
		if len(values) == 0 || len(times) == 0 {
			continue
		}

		last := len(values)
		if len(times) < last {
			last = len(times)
		}
		for j := last - 1; j >= 0; j-- {
			v := values[j]
			if v == nil {
				continue
			}
			measuredAt, err := time.Parse(time.RFC3339, times[j])
			if err != nil {
				continue
			}
			obs.Direction = v
			obs.MeasuredAt = &measuredAt
			return obs
		}
	}
	return obs
}

func (c *EDRClient) buildRequest(ctx context.Context, stationID string, windowStart, windowEnd time.Time) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + "/locations/" + url.PathEscape(stationID))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("datetime", formatWindow(windowStart, windowEnd))
	params.Set("parameter-name", "dd")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// formatWindow renders an ISO8601 interval with Z-suffixed UTC bounds, the
// form the EDR datetime query parameter expects.
func formatWindow(start, end time.Time) string {
	const layout = "2006-01-02T15:04:05Z"
	return start.UTC().Format(layout) + "/" + end.UTC().Format(layout)
}

func (c *EDRClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: check access token", ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrStationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// ValidateToken issues a minimal collection request to verify the token is
// accepted upstream. Used by the health endpoint.
func (c *EDRClient) ValidateToken(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: token rejected", ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
