package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"peerlend/loan"
)

var (
	// ErrCredentialMissing marks a client constructed without a bearer
	// token. Authentication itself lives outside this module; the error just
	// stops a doomed request from going out.
	ErrCredentialMissing = errors.New("ledger: bearer credential missing")
	// ErrCredentialExpired marks a bearer token whose exp claim has passed.
	ErrCredentialExpired = errors.New("ledger: bearer credential expired")
)

// Client reads the off-chain loan ledger: the viewer's profile, borrowed
// loans, published offers, and the open market. The data is a cache of the
// authoritative on-chain state, refreshed by the reconciler, not a parallel
// authority.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
	log     *slog.Logger
}

// Option customises the client instance.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithClock sets the function used for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient constructs a ledger client for the given base URL and bearer
// token.
func NewClient(baseURL, bearerToken string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(bearerToken),
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Profile fetches the viewer's profile.
func (c *Client) Profile(ctx context.Context) (*loan.Profile, error) {
	var payload profilePayload
	if err := c.get(ctx, "/protected/getProfile", &payload); err != nil {
		return nil, err
	}
	return payload.toProfile()
}

// MyLoans fetches the loans the viewer holds as borrower.
func (c *Client) MyLoans(ctx context.Context) ([]*loan.Loan, error) {
	return c.loanList(ctx, "/protected/getMyCredits")
}

// MyOffers fetches the offers the viewer published as lender.
func (c *Client) MyOffers(ctx context.Context) ([]*loan.Loan, error) {
	return c.loanList(ctx, "/protected/getMyOffers")
}

// OpenOffers fetches every offer currently listed on the market.
func (c *Client) OpenOffers(ctx context.Context) ([]*loan.Loan, error) {
	return c.loanList(ctx, "/protected/getAllOffers")
}

func (c *Client) loanList(ctx context.Context, path string) ([]*loan.Loan, error) {
	var payloads []loanPayload
	if err := c.get(ctx, path, &payloads); err != nil {
		return nil, err
	}
	loans := make([]*loan.Loan, 0, len(payloads))
	for i := range payloads {
		l, err := payloads[i].toLoan()
		if err != nil {
			// One malformed record must not blank the whole list; drop it
			// and keep the rest of the cache usable.
			c.log.Warn("dropping malformed ledger record", "path", path, "err", err)
			continue
		}
		loans = append(loans, l)
	}
	return loans, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.checkCredential(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ledger: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger: %s failed: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("ledger: decode %s: %w", path, err)
	}
	return nil
}

// checkCredential fails fast on a missing or visibly expired bearer token.
// Tokens that do not parse as JWTs are passed through untouched; their
// validation is the backend's concern.
func (c *Client) checkCredential() error {
	if c.token == "" {
		return ErrCredentialMissing
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return nil
	}
	if c.now().After(expiry.Time) {
		return fmt.Errorf("%w: expired at %s", ErrCredentialExpired, expiry.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
