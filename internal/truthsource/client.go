package truthsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/ybbus/httpretry"
	"golang.org/x/time/rate"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

// ClientConfig configures the HTTP truth source client.
type ClientConfig struct {
	BaseURL string

	// OAuth 1.0a token-based auth. Left empty, requests are unsigned.
	ConsumerKey    string
	ConsumerSecret string
	TokenKey       string
	TokenSecret    string
	Realm          string

	// Timeout bounds each lookup, retries included.
	Timeout    time.Duration
	RetryCount int
	RateLimit  float64
	RateBurst  int

	// HTTPClient replaces the signing client, mainly for tests.
	HTTPClient *http.Client
}

// Client queries the order-management REST API.
//
//	GET {base}/orders/{type}/{number}            -> order record, 404 when unknown
//	GET {base}/orders/{type}/{number}/activity   -> {"packages": [...]}
//	GET {base}/activity/{type}?tracking=&date=   -> {"packages": [...]}
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type orderResponse struct {
	OrderNumber string `json:"orderNumber"`
	PartyName   string `json:"partyName"`
}

type activityResponse struct {
	Packages *[]struct {
		TrackingNumber string `json:"trackingNumber"`
		Date           string `json:"date"`
	} `json:"packages"`
}

// NewClient builds a client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid truth source url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if cfg.ConsumerKey != "" {
			oc := oauth1.Config{
				ConsumerKey:    cfg.ConsumerKey,
				ConsumerSecret: cfg.ConsumerSecret,
				Realm:          cfg.Realm,
				Signer:         &oauth1.HMAC256Signer{ConsumerSecret: cfg.ConsumerSecret},
			}
			token := oauth1.NewToken(cfg.TokenKey, cfg.TokenSecret)
			httpClient = oc.Client(context.Background(), token)
		}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:    base,
		http:    httpretry.NewCustomClient(httpClient, httpretry.WithMaxRetryCount(cfg.RetryCount)),
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}, nil
}

func (c *Client) GetOrder(ctx context.Context, mode models.SourceMode, orderNumber string) (*models.OrderRecord, error) {
	typ, err := recordType(mode)
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	found, err := c.get(ctx, c.endpoint([]string{"orders", typ, orderNumber}, nil), &resp)
	if err != nil || !found {
		return nil, err
	}
	if resp.OrderNumber == "" {
		resp.OrderNumber = orderNumber
	}
	return &models.OrderRecord{OrderNumber: resp.OrderNumber, PartyName: resp.PartyName, Exists: true}, nil
}

func (c *Client) GetActivity(ctx context.Context, mode models.SourceMode, orderNumber string) ([]models.ActivityPackage, error) {
	typ, err := recordType(mode)
	if err != nil {
		return nil, err
	}
	return c.packages(ctx, c.endpoint([]string{"orders", typ, orderNumber, "activity"}, nil))
}

func (c *Client) FindByTracking(ctx context.Context, mode models.SourceMode, trackingNumber string, hint models.Date) ([]models.ActivityPackage, error) {
	typ, err := recordType(mode)
	if err != nil {
		return nil, err
	}
	q := url.Values{"tracking": {trackingNumber}}
	if !hint.IsZero() {
		q.Set("date", hint.String())
	}
	return c.packages(ctx, c.endpoint([]string{"activity", typ}, q))
}

func (c *Client) packages(ctx context.Context, endpoint string) ([]models.ActivityPackage, error) {
	var resp activityResponse
	found, err := c.get(ctx, endpoint, &resp)
	if err != nil || !found {
		return nil, err
	}
	if resp.Packages == nil {
		return nil, fmt.Errorf("unexpected response from %s: missing packages", endpoint)
	}

	out := make([]models.ActivityPackage, 0, len(*resp.Packages))
	for _, p := range *resp.Packages {
		pkg := models.ActivityPackage{TrackingNumber: normalizeTracking(p.TrackingNumber)}
		if p.Date != "" {
			t, err := time.Parse("2006-01-02", p.Date[:min(len(p.Date), 10)])
			if err != nil {
				return nil, fmt.Errorf("unexpected package date %q: %w", p.Date, err)
			}
			pkg.Date = models.DateOf(t)
		}
		out = append(out, pkg)
	}
	return out, nil
}

func (c *Client) endpoint(segments []string, q url.Values) string {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = u.Path + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// get performs one lookup. found is false on 404.
func (c *Client) get(ctx context.Context, endpoint string, dest any) (found bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("truth source request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return false, fmt.Errorf("reading truth source response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, fmt.Errorf("truth source returned %d: %s", resp.StatusCode, snippet(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return false, fmt.Errorf("unexpected response from truth source: %w", err)
	}
	return true, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func normalizeTracking(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
