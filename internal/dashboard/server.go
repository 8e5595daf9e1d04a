// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dashboard serves the education statistics over HTTP: a JSON API
// for each dashboard panel, a server-rendered overview page, health probes,
// and Prometheus metrics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/edu-pipeline/internal/store"
	"github.com/pdiddy/edu-pipeline/internal/transform"
	"github.com/pdiddy/edu-pipeline/pkg/types"
)

const (
	metricsPath     = "/metrics"
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second

	// DefaultYear is used when neither the request nor the config names one.
	DefaultYear = 2022
	// DefaultAddr matches the port the dashboard has always listened on.
	DefaultAddr = ":8501"
)

var countryCode = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

// Queryer is the read side of the store used by the dashboard.
type Queryer interface {
	Ping(ctx context.Context) error
	TableStats(ctx context.Context) []store.TableCount
	Countries(ctx context.Context) ([]store.Country, error)
	Country(ctx context.Context, code string) (store.Country, error)
	EnrollmentTrends(ctx context.Context, codes []string) ([]store.TrendPoint, error)
	GraduationRates(ctx context.Context, year int) ([]store.GraduationRate, error)
	SpendingComparison(ctx context.Context, year int) ([]store.Spending, error)
	CountryIndicators(ctx context.Context, code string) (store.Indicators, error)
	LastUpdated(ctx context.Context) (time.Time, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	app    *fiber.App
	q      Queryer
	cfg    types.DashboardConfig
	logger *slog.Logger
	page   *template.Template
}

// New builds the fiber app and registers routes and middleware. HTTP
// metrics are registered with reg and served from /metrics.
func New(q Queryer, cfg types.DashboardConfig, reg *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DefaultYear == 0 {
		cfg.DefaultYear = DefaultYear
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = transform.DefaultMinYear
	}
	if cfg.MaxYear == 0 {
		cfg.MaxYear = transform.DefaultMaxYear
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("registering HTTP metrics: %w", err)
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			ErrorHandler:          ErrorHandler(),
			DisableStartupMessage: true,
		}),
		q:      q,
		cfg:    cfg,
		logger: logger,
		page:   template.Must(template.New("index").Parse(indexHTML)),
	}

	s.app.Use(RequestID())
	s.app.Use(otelfiber.Middleware())
	s.app.Use(Logger(logger))
	s.app.Use(metrics.Handler())

	s.app.Get(metricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	s.routes()
	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(s.cfg.Addr) }()

	s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutting down dashboard: %w", err)
		}
		return <-errCh
	}
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := s.app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/countries", s.handleCountries)
	api.Get("/countries/:code/profile", s.handleProfile)
	api.Get("/enrollment/trends", s.handleTrends)
	api.Get("/graduation", s.handleGraduation)
	api.Get("/spending", s.handleSpending)
}

// internalError logs err and writes a generic 500 envelope.
func (s *Server) internalError(c *fiber.Ctx, op string, err error) error {
	s.logger.Error("dashboard query failed", "op", op, "request_id", requestID(c), "error", err)
	return writeError(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
}

// year reads ?year=, falling back to the configured default.
func (s *Server) year(c *fiber.Ctx) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return s.cfg.DefaultYear, true
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < s.cfg.MinYear || y > s.cfg.MaxYear {
		return 0, false
	}
	return y, true
}

func (s *Server) invalidYear(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, CodeInvalidYear,
		fmt.Sprintf("year must be between %d and %d", s.cfg.MinYear, s.cfg.MaxYear))
}

// parseCodes splits a comma-separated country list.
func parseCodes(raw string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if !countryCode.MatchString(code) {
			return nil, false
		}
		out = append(out, code)
	}
	return out, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()
	if err := s.q.Ping(ctx); err != nil {
		return writeError(c, fiber.StatusServiceUnavailable, CodeServiceUnavailable, "dependency unavailable")
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

type statsResponse struct {
	Countries         int                `json:"countries"`
	EnrollmentRecords int                `json:"enrollment_records"`
	GraduationRecords int                `json:"graduation_records"`
	SpendingRecords   int                `json:"spending_records"`
	Tables            []store.TableCount `json:"tables"`
	LastUpdated       *string            `json:"last_updated"`
}

func (s *Server) stats(ctx context.Context) (statsResponse, error) {
	tables := s.q.TableStats(ctx)
	resp := statsResponse{Tables: nonNil(tables)}
	for _, t := range tables {
		switch t.Dataset {
		case types.DatasetCountries:
			resp.Countries = t.Rows
		case types.DatasetEnrollment:
			resp.EnrollmentRecords = t.Rows
		case types.DatasetGraduation:
			resp.GraduationRecords = t.Rows
		case types.DatasetSpending:
			resp.SpendingRecords = t.Rows
		}
	}
	last, err := s.q.LastUpdated(ctx)
	if err != nil {
		return resp, err
	}
	if !last.IsZero() {
		d := last.Format("2006-01-02")
		resp.LastUpdated = &d
	}
	return resp, nil
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	resp, err := s.stats(c.UserContext())
	if err != nil {
		return s.internalError(c, "stats", err)
	}
	return c.JSON(resp)
}

func (s *Server) handleCountries(c *fiber.Ctx) error {
	countries, err := s.q.Countries(c.UserContext())
	if err != nil {
		return s.internalError(c, "countries", err)
	}
	return c.JSON(fiber.Map{"countries": nonNil(countries)})
}

func (s *Server) handleTrends(c *fiber.Ctx) error {
	codes := s.cfg.DefaultCountries
	if raw := c.Query("countries"); raw != "" {
		parsed, ok := parseCodes(raw)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidCountry, "invalid country code")
		}
		codes = parsed
	}

	points, err := s.q.EnrollmentTrends(c.UserContext(), codes)
	if err != nil {
		return s.internalError(c, "enrollment trends", err)
	}
	return c.JSON(fiber.Map{
		"countries": nonNil(codes),
		"points":    nonNil(points),
		"table":     Pivot(points),
	})
}

func (s *Server) handleGraduation(c *fiber.Ctx) error {
	year, ok := s.year(c)
	if !ok {
		return s.invalidYear(c)
	}
	rates, err := s.q.GraduationRates(c.UserContext(), year)
	if err != nil {
		return s.internalError(c, "graduation rates", err)
	}
	return c.JSON(fiber.Map{"year": year, "rates": nonNil(rates)})
}

func (s *Server) handleSpending(c *fiber.Ctx) error {
	year, ok := s.year(c)
	if !ok {
		return s.invalidYear(c)
	}
	rows, err := s.q.SpendingComparison(c.UserContext(), year)
	if err != nil {
		return s.internalError(c, "spending comparison", err)
	}
	return c.JSON(fiber.Map{
		"year":    year,
		"rows":    nonNil(rows),
		"summary": SummarizeSpending(rows),
	})
}

type latestValues struct {
	Enrollment *float64 `json:"enrollment"`
	Graduation *float64 `json:"graduation"`
	Spending   *float64 `json:"spending"`
}

type profileResponse struct {
	Country            store.Country    `json:"country"`
	Indicators         store.Indicators `json:"indicators"`
	Latest             latestValues     `json:"latest"`
	EnrollmentTrendPct *float64         `json:"enrollment_trend_pct"`
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	code := strings.ToUpper(c.Params("code"))
	if !countryCode.MatchString(code) {
		return writeError(c, fiber.StatusBadRequest, CodeInvalidCountry, "invalid country code")
	}

	ctx := c.UserContext()
	country, err := s.q.Country(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return writeError(c, fiber.StatusNotFound, CodeNotFound, "country not found")
	}
	if err != nil {
		return s.internalError(c, "country", err)
	}

	ind, err := s.q.CountryIndicators(ctx, code)
	if err != nil {
		return s.internalError(c, "country indicators", err)
	}
	ind.Enrollment = nonNil(ind.Enrollment)
	ind.Graduation = nonNil(ind.Graduation)
	ind.Spending = nonNil(ind.Spending)

	return c.JSON(profileResponse{
		Country:    country,
		Indicators: ind,
		Latest: latestValues{
			Enrollment: Latest(ind.Enrollment),
			Graduation: Latest(ind.Graduation),
			Spending:   Latest(ind.Spending),
		},
		EnrollmentTrendPct: PercentChange(ind.Enrollment),
	})
}

type pageData struct {
	Stats      statsResponse
	Year       int
	Countries  []store.Country
	Graduation []store.GraduationRate
	Spending   []store.Spending
	Summary    *SpendingSummary
}

// topN is the number of rows shown per ranking on the overview page.
const topN = 10

func (s *Server) handleIndex(c *fiber.Ctx) error {
	ctx := c.UserContext()
	year, ok := s.year(c)
	if !ok {
		return s.invalidYear(c)
	}

	stats, err := s.stats(ctx)
	if err != nil {
		return s.internalError(c, "stats", err)
	}
	countries, err := s.q.Countries(ctx)
	if err != nil {
		return s.internalError(c, "countries", err)
	}
	grad, err := s.q.GraduationRates(ctx, year)
	if err != nil {
		return s.internalError(c, "graduation rates", err)
	}
	spend, err := s.q.SpendingComparison(ctx, year)
	if err != nil {
		return s.internalError(c, "spending comparison", err)
	}

	data := pageData{
		Stats:      stats,
		Year:       year,
		Countries:  countries,
		Graduation: grad[:min(len(grad), topN)],
		Spending:   spend[:min(len(spend), topN)],
		Summary:    SummarizeSpending(spend),
	}

	var b strings.Builder
	if err := s.page.Execute(&b, data); err != nil {
		return s.internalError(c, "render index", err)
	}
	c.Type("html")
	return c.SendString(b.String())
}
