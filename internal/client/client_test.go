package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testToken = "edr-test-token-12345"

// TestNewEDRClient_MissingToken verifies an empty token is rejected at
// construction as a configuration error.
func TestNewEDRClient_MissingToken(t *testing.T) {
	c, err := NewEDRClient("", "https://api.test", 30*time.Second)
	if err == nil {
		t.Fatal("NewEDRClient() expected error for empty token, got nil")
	}
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("NewEDRClient() error = %v, want ErrMissingToken", err)
	}
	if c != nil {
		t.Error("NewEDRClient() expected nil client on error")
	}
}

func TestEDRClient_LatestDirection_Success(t *testing.T) {
	payload := `{
		"coverages": [
			{
				"domain": {"axes": {"t": {"values": ["2026-08-23T10:00:00Z", "2026-08-23T10:10:00Z"]}}},
				"ranges": {"dd": {"values": [180, 200]}}
			}
		]
	}`

	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/locations/") {
			t.Errorf("expected /locations/{station} path, got %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	c, err := NewEDRClient(testToken, server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewEDRClient() error = %v", err)
	}

	obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
	if err != nil {
		t.Fatalf("LatestDirection() error = %v", err)
	}

	if gotAuth != testToken {
		t.Errorf("Authorization header = %q, want %q", gotAuth, testToken)
	}
	if !strings.Contains(gotQuery, "parameter-name=dd") {
		t.Errorf("expected parameter-name=dd in query, got %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "datetime=") {
		t.Errorf("expected datetime window in query, got %s", gotQuery)
	}
	// The window is start/end with Z-suffixed UTC instants.
	if !strings.Contains(gotQuery, "Z%2F") && !strings.Contains(gotQuery, "Z/") {
		t.Errorf("expected ISO8601 interval in datetime param, got %s", gotQuery)
	}

	if !obs.HasReading() {
		t.Fatal("LatestDirection() expected a reading")
	}
	if *obs.Direction != 200 {
		t.Errorf("Direction = %v, want 200", *obs.Direction)
	}
	wantMeasured := time.Date(2026, 8, 23, 10, 10, 0, 0, time.UTC)
	if !obs.MeasuredAt.Equal(wantMeasured) {
		t.Errorf("MeasuredAt = %v, want %v", obs.MeasuredAt, wantMeasured)
	}
	if obs.RetrievedAt.IsZero() {
		t.Error("RetrievedAt should be set")
	}
}

// TestEDRClient_LatestDirection_SkipsNulls verifies the backward scan: when
// the most recent sample is null, the latest non-null sample wins.
func TestEDRClient_LatestDirection_SkipsNulls(t *testing.T) {
	payload := `{
		"coverages": [
			{
				"domain": {"axes": {"t": {"values": ["2026-08-23T09:50:00Z", "2026-08-23T10:00:00Z", "2026-08-23T10:10:00Z"]}}},
				"ranges": {"dd": {"values": [170, 190, null]}}
			}
		]
	}`

	server := newJSONServer(t, http.StatusOK, payload)
	defer server.Close()

	c := mustClient(t, server.URL)
	obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
	if err != nil {
		t.Fatalf("LatestDirection() error = %v", err)
	}
	if !obs.HasReading() {
		t.Fatal("expected a reading from earlier non-null sample")
	}
	if *obs.Direction != 190 {
		t.Errorf("Direction = %v, want 190 (latest non-null)", *obs.Direction)
	}
	wantMeasured := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if !obs.MeasuredAt.Equal(wantMeasured) {
		t.Errorf("MeasuredAt = %v, want %v", obs.MeasuredAt, wantMeasured)
	}
}

// TestEDRClient_LatestDirection_EmptyCoverages verifies an empty coverages
// list is a data-absent condition, not an error.
func TestEDRClient_LatestDirection_EmptyCoverages(t *testing.T) {
	server := newJSONServer(t, http.StatusOK, `{"coverages": []}`)
	defer server.Close()

	c := mustClient(t, server.URL)
	obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
	if err != nil {
		t.Fatalf("LatestDirection() error = %v, want nil for empty coverages", err)
	}
	if obs.HasReading() {
		t.Error("expected absent reading")
	}
	if obs.Direction != nil || obs.MeasuredAt != nil {
		t.Error("Direction and MeasuredAt must both be nil when no data exists")
	}
	if obs.RetrievedAt.IsZero() {
		t.Error("RetrievedAt should still be set")
	}
}

// TestEDRClient_LatestDirection_MissingKeys verifies sparse documents are
// tolerated: missing ranges, missing dd, missing time axis.
func TestEDRClient_LatestDirection_MissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "no body keys", payload: `{}`},
		{name: "coverage without ranges", payload: `{"coverages": [{"domain": {"axes": {"t": {"values": ["2026-08-23T10:00:00Z"]}}}}]}`},
		{name: "coverage without dd series", payload: `{"coverages": [{"ranges": {"ff": {"values": [5]}}, "domain": {"axes": {"t": {"values": ["2026-08-23T10:00:00Z"]}}}}]}`},
		{name: "coverage without time axis", payload: `{"coverages": [{"ranges": {"dd": {"values": [200]}}, "domain": {}}]}`},
		{name: "all samples null", payload: `{"coverages": [{"ranges": {"dd": {"values": [null, null]}}, "domain": {"axes": {"t": {"values": ["2026-08-23T09:50:00Z", "2026-08-23T10:00:00Z"]}}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newJSONServer(t, http.StatusOK, tt.payload)
			defer server.Close()

			c := mustClient(t, server.URL)
			obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
			if err != nil {
				t.Fatalf("LatestDirection() error = %v, want nil", err)
			}
			if obs.HasReading() {
				t.Error("expected absent reading")
			}
		})
	}
}

// TestEDRClient_LatestDirection_DataKeyFallback verifies the "data" sample
// key is honored when "values" is absent.
func TestEDRClient_LatestDirection_DataKeyFallback(t *testing.T) {
	payload := `{
		"coverages": [
			{
				"domain": {"axes": {"t": {"values": ["2026-08-23T10:00:00Z"]}}},
				"ranges": {"dd": {"data": [135]}}
			}
		]
	}`
	server := newJSONServer(t, http.StatusOK, payload)
	defer server.Close()

	c := mustClient(t, server.URL)
	obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
	if err != nil {
		t.Fatalf("LatestDirection() error = %v", err)
	}
	if !obs.HasReading() || *obs.Direction != 135 {
		t.Errorf("expected reading 135 from data key, got %+v", obs)
	}
}

// TestEDRClient_LatestDirection_MultipleCoverages verifies coverages are
// scanned newest-to-oldest across coverage boundaries.
func TestEDRClient_LatestDirection_MultipleCoverages(t *testing.T) {
	payload := `{
		"coverages": [
			{
				"domain": {"axes": {"t": {"values": ["2026-08-23T08:00:00Z"]}}},
				"ranges": {"dd": {"values": [90]}}
			},
			{
				"domain": {"axes": {"t": {"values": ["2026-08-23T10:00:00Z"]}}},
				"ranges": {"dd": {"values": [null]}}
			}
		]
	}`
	server := newJSONServer(t, http.StatusOK, payload)
	defer server.Close()

	c := mustClient(t, server.URL)
	obs, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
	if err != nil {
		t.Fatalf("LatestDirection() error = %v", err)
	}
	if !obs.HasReading() || *obs.Direction != 90 {
		t.Errorf("expected fallback to earlier coverage value 90, got %+v", obs)
	}
}

func TestEDRClient_LatestDirection_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{name: "unauthorized", statusCode: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "forbidden", statusCode: http.StatusForbidden, wantErr: ErrUnauthorized},
		{name: "not found", statusCode: http.StatusNotFound, wantErr: ErrStationNotFound},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: ErrUpstreamFailure},
		{name: "bad gateway", statusCode: http.StatusBadGateway, wantErr: ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newJSONServer(t, tt.statusCode, `{}`)
			defer server.Close()

			c := mustClient(t, server.URL)
			_, err := c.LatestDirection(context.Background(), "0-20000-0-06240", 6*time.Hour)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LatestDirection() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEDRClient_ValidateToken(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{name: "accepted", statusCode: http.StatusOK},
		{name: "rejected", statusCode: http.StatusUnauthorized, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newJSONServer(t, tt.statusCode, `{}`)
			defer server.Close()

			c := mustClient(t, server.URL)
			err := c.ValidateToken(context.Background())
			if tt.wantErr && err == nil {
				t.Fatal("ValidateToken() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrorCategoryTimeout},
		{name: "unauthorized", err: ErrUnauthorized, want: ErrorCategoryUnauthorized},
		{name: "missing token", err: ErrMissingToken, want: ErrorCategoryUnauthorized},
		{name: "station not found", err: ErrStationNotFound, want: ErrorCategoryStationNotFound},
		{name: "rate limited", err: ErrRateLimited, want: ErrorCategoryRateLimited},
		{name: "upstream", err: ErrUpstreamFailure, want: ErrorCategoryUpstream5xx},
		{name: "parse", err: errors.New("parse response: unexpected end of JSON input"), want: ErrorCategoryParsing},
		{name: "connection", err: errors.New("dial tcp: connection refused"), want: ErrorCategoryNetwork},
		{name: "other", err: errors.New("boom"), want: ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func newJSONServer(t *testing.T, status int, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
}

func mustClient(t *testing.T, baseURL string) *EDRClient {
	t.Helper()
	c, err := NewEDRClient(testToken, baseURL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewEDRClient() error = %v", err)
	}
	return c
}
