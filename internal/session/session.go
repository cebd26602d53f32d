// Package session wraps a Colly collector as a cookie-bearing HTTP session.
// Each Session owns its own cookie jar and transport, so two sessions never
// share credentials.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxRedirects = 10

// ErrClosed is returned by requests issued after Close.
var ErrClosed = errors.New("session closed")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Response is the outcome of a single request.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	// Redirects lists every redirect target followed, in order.
	Redirects []*url.URL
}

// OK reports whether the status code is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Session issues sequential requests through one Colly collector. It is not
// safe for concurrent use.
type Session struct {
	collector *colly.Collector
	transport *http.Transport
	closed    bool
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
}

// New opens a session with a fresh cookie jar.
func New(cfg Config) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.ParseHTTPErrorResponse = true

	transport := newHTTPTransport()
	c.WithTransport(transport)
	c.SetCookieJar(jar)

	return &Session{collector: c, transport: transport}, nil
}

// captureResponse copies every response seen by hooks into *dst.
func captureResponse(hooks collectorHooks, dst **Response) {
	hooks.OnResponse(func(r *colly.Response) {
		resp := &Response{StatusCode: r.StatusCode, Body: append([]byte(nil), r.Body...)}
		if r.Request != nil && r.Request.URL != nil {
			resp.URL = r.Request.URL.String()
		}
		if r.Headers != nil {
			resp.Headers = r.Headers.Clone()
		}
		*dst = resp
	})
}

// redirectTrail records the redirect targets of one request.
type redirectTrail []*url.URL

func (t *redirectTrail) follow(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	*t = append(*t, req.URL)
	return nil
}

// PostForm sends a form-encoded POST.
func (s *Session) PostForm(ctx context.Context, target string, form url.Values) (Response, error) {
	hdr := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	return s.Do(ctx, http.MethodPost, target, strings.NewReader(form.Encode()), hdr)
}

// PostJSON sends an already encoded JSON body.
func (s *Session) PostJSON(ctx context.Context, target string, body []byte) (Response, error) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	return s.Do(ctx, http.MethodPost, target, bytes.NewReader(body), hdr)
}

// Get issues a GET with the given query parameters appended to target.
func (s *Session) Get(ctx context.Context, target string, query url.Values, hdr http.Header) (Response, error) {
	u, err := url.Parse(target)
	if err != nil {
		return Response{}, fmt.Errorf("parse url %q: %w", target, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return s.Do(ctx, http.MethodGet, u.String(), nil, hdr)
}

// Do runs one request. The request is bound to ctx, so cancelling ctx aborts
// it. Any HTTP status is returned as a Response; only transport failures are
// errors, and those never include the target URL.
func (s *Session) Do(ctx context.Context, method, target string, body io.Reader, hdr http.Header) (Response, error) {
	if s.closed {
		return Response{}, ErrClosed
	}

	// The clone shares the cookie jar and transport but carries its own
	// context and callbacks.
	c := s.collector.Clone()
	c.Context = ctx
	var (
		current *Response
		trail   redirectTrail
	)
	captureResponse(c, &current)
	c.SetRedirectHandler(trail.follow)

	if err := c.Request(method, target, body, nil, hdr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("%s canceled: %w", method, ctxErr)
		}
		return Response{}, fmt.Errorf("%s failed: %w", method, redact(err))
	}
	if current == nil {
		return Response{}, fmt.Errorf("%s: no response received", method)
	}
	resp := *current
	resp.Redirects = trail
	return resp, nil
}

// redact drops the request URL that net/http puts in its errors, since
// webhook URLs carry credentials in their path.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// Cookies returns the cookies the session would send to target.
func (s *Session) Cookies(target string) []*http.Cookie {
	return s.collector.Cookies(target)
}

// Close drops the cookie jar and idle connections. It is safe to call twice.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.collector.SetCookieJar(nil)
	s.transport.CloseIdleConnections()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
