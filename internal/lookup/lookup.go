// Package lookup resolves a Korean road address to a parcel (PNU) and its
// land-registry attributes by calling a running toji-proxy.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"toji-proxy/internal/vworld"
)

const maxResponseBytes = 10 * 1024 * 1024

var (
	// ErrMalformedResponse means the proxy answered with something that is
	// not JSON. The proxy never does this when deployed correctly, so it
	// points at a deployment or configuration problem.
	ErrMalformedResponse = errors.New("proxy returned a non-JSON response; check the proxy deployment and its domain/key configuration")

	// ErrNoResults means the address search matched nothing.
	ErrNoResults = errors.New("no search results")

	// ErrNoPNU means the first search result carried no parcel id.
	ErrNoPNU = errors.New("search result has no PNU")

	// ErrNoLandRecord means no known response shape held a land record.
	ErrNoLandRecord = errors.New("land record not found")

	// ErrNoPrice means the feature lookup returned no publicly-notified price.
	ErrNoPrice = errors.New("price not found")
)

// ProxyError is a {"error", "detail"} body returned by the proxy.
type ProxyError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *ProxyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("proxy %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("proxy %d: %s: %s", e.StatusCode, e.Message, e.Detail)
}

// SearchError is a non-OK status reported inside a VWorld search response.
type SearchError struct {
	Status string
	Text   string
}

func (e *SearchError) Error() string {
	if e.Text == "" {
		return "address search failed: " + e.Status
	}
	return fmt.Sprintf("address search failed: %s: %s", e.Status, e.Text)
}

// Options configures a Client.
type Options struct {
	ProxyURL string        // e.g. "http://localhost:8000"
	APIKey   string        // sent as "key" when set
	Domain   string        // sent as "domain" when set
	Category string        // search category: "road" (default) or "parcel"
	Timeout  time.Duration // per request; 10s when zero
}

// Result is everything known about the parcel an address resolved to.
type Result struct {
	Address   string `json:"address"`
	PNU       string `json:"pnu"`
	Jibun     string `json:"jibun,omitempty"`
	Category  string `json:"category,omitempty"`
	Area      string `json:"area,omitempty"`
	Price     string `json:"price,omitempty"`
	Ownership string `json:"ownership,omitempty"`
}

// Client calls the proxy's search, ladfrlList and data endpoints.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

// New creates a Client for the proxy at opts.ProxyURL.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.ProxyURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("proxy url must be http or https; got %q", opts.ProxyURL)
	}
	if opts.Category == "" {
		opts.Category = "road"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	return &Client{
		base:       u,
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     logger.With("component", "lookup_client"),
	}, nil
}

// Lookup resolves address to a PNU, then fetches the land record. When the
// record has no price, the price is taken from the parcel feature instead;
// a failure there leaves Price empty rather than failing the lookup.
func (c *Client) Lookup(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("address is empty")
	}

	pnu, err := c.SearchPNU(ctx, address)
	if err != nil {
		return nil, err
	}

	res, err := c.LandInfo(ctx, pnu)
	if err != nil {
		return nil, err
	}
	res.Address = address

	if res.Price == "" {
		price, err := c.Price(ctx, pnu)
		if err != nil {
			c.logger.Debug("price lookup failed", "pnu", pnu, "err", err)
		}
		res.Price = price
	}

	return res, nil
}

// SearchPNU returns the PNU of the first search hit for address.
func (c *Client) SearchPNU(ctx context.Context, address string) (string, error) {
	q := url.Values{
		"service":     {"search"},
		"request":     {"search"},
		"version":     {"2.0"},
		"format":      {"json"},
		"errorFormat": {"json"},
		"size":        {"10"},
		"page":        {"1"},
		"query":       {address},
		"type":        {"address"},
		"category":    {c.opts.Category},
	}

	doc, err := c.get(ctx, "/api/search", q)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", address, err)
	}

	if status := str(doc, "response", "status"); status != "OK" {
		if status == "NOT_FOUND" {
			return "", ErrNoResults
		}
		text := str(doc, "response", "error", "text")
		if text == "" {
			text = str(doc, "error")
		}
		return "", &SearchError{Status: status, Text: text}
	}

	items, _ := walkRaw(doc, "response", "result", "items")
	if arr, ok := items.([]any); !ok || len(arr) == 0 {
		return "", ErrNoResults
	}

	pnu := str(doc, "response", "result", "items", "id")
	if pnu == "" {
		return "", ErrNoPNU
	}
	return pnu, nil
}

// LandInfo fetches the land-registry record for pnu.
func (c *Client) LandInfo(ctx context.Context, pnu string) (*Result, error) {
	q := url.Values{
		"pnu":       {pnu},
		"format":    {"json"},
		"numOfRows": {"1"},
		"pageNo":    {"1"},
	}

	doc, err := c.get(ctx, "/api/ladfrlList", q)
	if err != nil {
		return nil, fmt.Errorf("land info %s: %w", pnu, err)
	}

	rec, ok := First(doc, landRecordStrategies...)
	if !ok {
		return nil, fmt.Errorf("land info %s: %w", pnu, ErrNoLandRecord)
	}

	return &Result{
		PNU:       pnu,
		Jibun:     field(rec, "jibun", "mnnmSlno"),
		Category:  field(rec, "ldCodeNm", "lndcgrCodeNm"),
		Area:      field(rec, "lndpclAr"),
		Price:     field(rec, "pblntfPc"),
		Ownership: field(rec, "posesnSeCodeNm"),
	}, nil
}

// Price fetches the publicly-notified land price from the cadastral feature for pnu.
func (c *Client) Price(ctx context.Context, pnu string) (string, error) {
	q := url.Values{
		"service":    {"data"},
		"request":    {"GetFeature"},
		"data":       {"LP_PA_CBND_BUBUN"},
		"attrFilter": {"pnu:=:" + pnu},
		"format":     {"json"},
		"geometry":   {"false"},
		"size":       {"1"},
		"page":       {"1"},
	}

	doc, err := c.get(ctx, "/api/data", q)
	if err != nil {
		return "", fmt.Errorf("price %s: %w", pnu, err)
	}

	props, ok := First(doc, featurePropertiesStrategies...)
	if !ok {
		return "", fmt.Errorf("price %s: %w", pnu, ErrNoPrice)
	}
	price := field(props, "jiga", "pblntfPc")
	if price == "" {
		return "", fmt.Errorf("price %s: %w", pnu, ErrNoPrice)
	}
	return price, nil
}

// get calls the proxy and decodes its JSON body. Numbers are kept as
// json.Number so PNUs and prices are never rounded.
func (c *Client) get(ctx context.Context, path string, q url.Values) (any, error) {
	if c.opts.APIKey != "" {
		q.Set(vworld.ParamKey, c.opts.APIKey)
	}
	if c.opts.Domain != "" {
		q.Set(vworld.ParamDomain, c.opts.Domain)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(vworld.RedactKey(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w (status %d)", ErrMalformedResponse, resp.StatusCode)
	}

	if perr := proxyError(resp.StatusCode, doc); perr != nil {
		return nil, perr
	}
	return doc, nil
}

// proxyError reports a proxy error body. A 2xx response is only an error
// when its top level carries an "error" string and no VWorld "response"
// envelope; an envelope's status is checked by the caller.
func proxyError(status int, doc any) *ProxyError {
	m, _ := doc.(map[string]any)
	msg, _ := m["error"].(string)
	detail, _ := m["detail"].(string)
	_, envelope := m["response"]

	if status >= 200 && status < 300 && (msg == "" || envelope) {
		return nil
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ProxyError{StatusCode: status, Message: msg, Detail: detail}
}

// walkRaw is walk without unwrapping a trailing array.
func walkRaw(doc any, keys ...string) (any, bool) {
	if len(keys) == 0 {
		return doc, true
	}
	parent, ok := walk(doc, keys[:len(keys)-1])
	if !ok {
		return nil, false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[keys[len(keys)-1]]
	return v, ok
}
