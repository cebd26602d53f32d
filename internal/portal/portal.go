// Package portal logs in to the Diftar waste portal and reads the weighing
// operations listing.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/diftar2energyid/internal/session"
	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

const (
	logonPath   = "/Account/Logon"
	listingPath = "/Aansluitpunten/ShowResultsVerrichtingen"
	// Authenticated pages live under this prefix.
	authenticatedPrefix = "/Aansluitpunten"

	// PageSize matches the EnergyID webhook's per-request limit, so a single
	// page covers everything one delivery can carry.
	PageSize = 100
	// weighingOperation filters out top-ups and other financial operations.
	weighingOperation = 2
)

// Config controls how the portal is reached.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Strict enables the LogonByName form field and requires the login to
	// redirect into the authenticated area.
	Strict bool
}

// Credentials identify the portal account.
type Credentials struct {
	Identifier string
	Secret     string
}

// Client opens portal sessions.
type Client struct {
	cfg    Config
	creds  Credentials
	logger *zap.Logger
}

// New builds a Client for the given account.
func New(cfg Config, creds Credentials, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, creds: creds, logger: logger}
}

// Session is an authenticated portal session.
type Session struct {
	http    *session.Session
	baseURL string
	logger  *zap.Logger
}

// Login authenticates and returns a cookie-bearing Session. The caller must
// Close it.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	s, err := session.New(session.Config{UserAgent: c.cfg.UserAgent, Timeout: c.cfg.Timeout})
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}

	form := url.Values{
		"Identifier":          {c.creds.Identifier},
		"AuthenticationValue": {c.creds.Secret},
		"RememberMe":          {"true"},
	}
	if c.cfg.Strict {
		form.Set("LogonByName", "false")
	}

	resp, err := s.PostForm(ctx, c.cfg.BaseURL+logonPath, form)
	if err != nil {
		s.Close()
		return nil, &AuthenticationError{Err: err}
	}
	if !resp.OK() {
		s.Close()
		return nil, &AuthenticationError{StatusCode: resp.StatusCode}
	}
	if c.cfg.Strict {
		if err := checkLanding(resp.Redirects); err != nil {
			s.Close()
			return nil, &AuthenticationError{StatusCode: resp.StatusCode, Err: err}
		}
	}

	c.logger.Info("Logged in to portal", zap.String("url", c.cfg.BaseURL))
	return &Session{http: s, baseURL: c.cfg.BaseURL, logger: c.logger}, nil
}

// checkLanding requires the final redirect of a login to land in the
// authenticated area. A rejected login redirects back to the logon form.
func checkLanding(redirects []*url.URL) error {
	if len(redirects) == 0 {
		return ErrNoRedirect
	}
	last := redirects[len(redirects)-1]
	if !strings.HasPrefix(last.Path, authenticatedPrefix) {
		return fmt.Errorf("%w: %s", ErrUnexpectedLanding, last.Path)
	}
	return nil
}

type listing struct {
	TotalRecords int             `json:"iTotalRecords"`
	Rows         *[]waste.RawRow `json:"aaData"`
}

// FetchRows reads one page of weighing operations, oldest first.
func (s *Session) FetchRows(ctx context.Context) ([]waste.RawRow, error) {
	target := s.baseURL + listingPath
	query := url.Values{
		"sEcho":             {"1"},
		"sSearchFilter":     {""},
		"DisplayStart":      {"0"},
		"DisplayLength":     {strconv.Itoa(PageSize)},
		"SortBy":            {"Verrichtingsdatum"},
		"SortDirection":     {"asc"},
		"Verrichtingtypeid": {strconv.Itoa(weighingOperation)},
	}
	hdr := http.Header{
		"Accept":           {"application/json"},
		"X-Requested-With": {"XMLHttpRequest"},
	}

	resp, err := s.http.Get(ctx, target, query, hdr)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if !resp.OK() {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	var body listing
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode listing: %w", err)}
	}
	if body.Rows == nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: ErrNoData}
	}

	rows := *body.Rows
	s.logger.Info("Fetched portal rows", zap.Int("count", len(rows)), zap.Int("total", body.TotalRecords))
	return rows, nil
}

// Close releases the session cookies and connections.
func (s *Session) Close() {
	s.http.Close()
}

// Rows logs in, reads the listing and closes the session whatever the outcome.
func (c *Client) Rows(ctx context.Context) ([]waste.RawRow, error) {
	s, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.FetchRows(ctx)
}
