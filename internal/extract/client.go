// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pdiddy/edu-pipeline/internal/httputil"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "edu-pipeline/0.1"

	// maxBodyBytes bounds a single dataset response.
	maxBodyBytes = 256 << 20
)

// defaultParams are sent with every dataset request; caller params override.
var defaultParams = map[string]string{
	"dimensionAtObservation": "AllDimensions",
	"detail":                 "dataonly",
}

// sdmxParams maps lower-cased SDMX query parameter names to their
// canonical spelling. Config files may arrive with lower-cased map keys.
var sdmxParams = map[string]string{
	"startperiod":            "startPeriod",
	"endperiod":              "endPeriod",
	"dimensionatobservation": "dimensionAtObservation",
	"detail":                 "detail",
	"firstnobservations":     "firstNObservations",
	"lastnobservations":      "lastNObservations",
	"updatedafter":           "updatedAfter",
	"includehistory":         "includeHistory",
}

// ParamName returns the canonical spelling of an SDMX query parameter.
// Unknown names are returned unchanged.
func ParamName(k string) string {
	if c, ok := sdmxParams[strings.ToLower(k)]; ok {
		return c
	}
	return k
}

// Client fetches OECD datasets over the SDMX-JSON REST API.
type Client struct {
	HTTP       *http.Client
	BaseURL    string
	UserAgent  string
	MaxRetries int
}

// NewClient builds a Client from cfg. The transport is instrumented with
// OpenTelemetry so each dataset request appears as a client span.
func NewClient(cfg types.ExtractionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:    cfg.BaseURL,
		UserAgent:  ua,
		MaxRetries: cfg.MaxRetries,
	}
}

// DatasetURL returns the request URL for code with the default parameters
// merged with params.
func (c *Client) DatasetURL(code string, params map[string]string) string {
	q := url.Values{}
	for k, v := range defaultParams {
		q.Set(k, v)
	}
	for k, v := range params {
		q.Set(ParamName(k), v)
	}
	return c.BaseURL + url.PathEscape(code) + "?" + q.Encode()
}

// FetchDataset downloads one dataset and parses it into observations.
func (c *Client) FetchDataset(ctx context.Context, code string, params map[string]string) ([]types.Observation, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("dataset code is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DatasetURL(code, params), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/vnd.sdmx.data+json, application/json")

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: OECD API returned HTTP %d", code, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", code, err)
	}

	obs, err := ParseSDMX(body)
	if err != nil {
		return nil, fmt.Errorf("parsing response for %s: %w", code, err)
	}
	return obs, nil
}
