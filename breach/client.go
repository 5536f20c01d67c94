// Package breach checks passwords against the Have I Been Pwned range API
// using k-anonymity: only the first five hex characters of the password's
// SHA-1 hash ever leave the process.
package breach

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/util"
)

const (
	// DefaultEndpoint is the public range API. The prefix is appended.
	DefaultEndpoint = "https://api.pwnedpasswords.com/range/"
	// DefaultDelay spaces consecutive requests.
	DefaultDelay = 200 * time.Millisecond
	// MinDelay is the lowest spacing the client will accept.
	MinDelay = 100 * time.Millisecond
	// DefaultTimeout bounds a single range request.
	DefaultTimeout = 10 * time.Second

	prefixLen       = 5
	maxResponseSize = 4 << 20
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client queries the range API. It is safe for concurrent use; requests are
// spaced by the configured delay regardless of caller.
type Client struct {
	endpoint string
	doer     Doer
	delay    time.Duration
	timeout  time.Duration
	padding  bool
	limiter  *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the range API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithDoer sets the transport used for range requests.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithDelay sets the spacing between requests. Values below MinDelay are
// raised to MinDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPadding asks the API to pad responses with zero-count rows so the
// response size does not reveal the prefix.
func WithPadding(enabled bool) Option {
	return func(c *Client) {
		c.padding = enabled
	}
}

// NewClient returns a client with the given options applied.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		endpoint: DefaultEndpoint,
		delay:    DefaultDelay,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		return nil, failure.E(failure.MalformedInput, "breach endpoint is required")
	}
	if !strings.HasSuffix(c.endpoint, "/") {
		c.endpoint += "/"
	}
	if c.delay < MinDelay {
		slog.Warn("breach delay below minimum, clamping",
			slog.Duration("requested", c.delay),
			slog.Duration("min", MinDelay),
		)
		c.delay = MinDelay
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}
	c.limiter = rate.NewLimiter(rate.Every(c.delay), 1)
	return c, nil
}

// SHA1Hex returns the uppercase hex SHA-1 digest of password.
func SHA1Hex(password string) string {
	b := []byte(password)
	defer util.WipeBytes(b)
	return util.SHA1HexUpper(b)
}

// CheckPassword looks password up by its hash prefix. On any transport or
// parse failure it returns a Result with Status Unknown and a
// failure.TransportFailure error.
func (c *Client) CheckPassword(ctx context.Context, password string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Status: Unknown}, failure.E(failure.TransportFailure, "waiting for rate limiter", err)
	}
	return c.check(ctx, password)
}

// check performs one range lookup without consulting the limiter.
func (c *Client) check(ctx context.Context, password string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hash := SHA1Hex(password)
	prefix, suffix := hash[:prefixLen], hash[prefixLen:]

	slog.Debug("breach range query", slog.String("prefix", prefix))
	body, err := c.fetchRange(ctx, prefix)
	if err != nil {
		return Result{Status: Unknown}, err
	}
	defer body.Close()

	count, err := findSuffix(body, suffix)
	if err != nil {
		return Result{Status: Unknown}, err
	}
	if count > 0 {
		return Result{Status: Breached, Count: count}, nil
	}
	return Result{Status: Safe}, nil
}

func (c *Client) fetchRange(ctx context.Context, prefix string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+prefix, nil)
	if err != nil {
		return nil, failure.E(failure.TransportFailure, "building range request", err)
	}
	req.Header.Set("User-Agent", "lockbox")
	if c.padding {
		req.Header.Set("Add-Padding", "true")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, failure.E(failure.TransportFailure, "range request", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, failure.Errorf(failure.TransportFailure, "range request: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// findSuffix scans SUFFIX:COUNT lines for an exact, case-sensitive suffix
// match and returns its count, or 0 when absent.
func findSuffix(r io.Reader, suffix string) (int, error) {
	sc := bufio.NewScanner(io.LimitReader(r, maxResponseSize))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		got, rawCount, ok := strings.Cut(line, ":")
		if !ok {
			return 0, failure.Errorf(failure.TransportFailure, "malformed range line %q", line)
		}
		if strings.TrimSpace(got) != suffix {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil || count < 0 {
			return 0, failure.E(failure.TransportFailure, fmt.Sprintf("malformed count for matching suffix %q", rawCount))
		}
		return count, nil
	}
	if err := sc.Err(); err != nil {
		return 0, failure.E(failure.TransportFailure, "reading range response", err)
	}
	return 0, nil
}
