// Package arcgis is a minimal client for ArcGIS REST FeatureServer layers:
// paged attribute queries with the exceededTransferLimit continuation flag.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"str-pipeline/utils"
)

// DefaultPageSize matches the record count most county feature services
// allow per request.
const DefaultPageSize = 2000

// Feature is one returned feature; only attributes are requested, geometry
// is always omitted.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
}

// FeatureSet is a single query response page.
type FeatureSet struct {
	Features              []Feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
	Error                 *APIError `json:"error"`
}

// APIError is the error object ArcGIS embeds in an HTTP 200 response.
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("arcgis: %d %s (%s)", e.Code, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("arcgis: %d %s", e.Code, e.Message)
}

// Query describes one page request against a layer.
type Query struct {
	Where             string
	OutFields         []string
	ResultOffset      int
	ResultRecordCount int
}

// Client queries ArcGIS feature layers over plain HTTP. County services
// expect a Referer header matching the public map host.
type Client struct {
	httpClient *http.Client
	referer    string
	token      string
	throttle   *utils.Throttle
	retry      *utils.RetryConfig
	logger     *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithReferer sets the Referer header sent with every request.
func WithReferer(referer string) Option {
	return func(c *Client) { c.referer = referer }
}

// WithToken sets an API key appended to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithThrottle sets a minimum interval between page requests.
func WithThrottle(minInterval time.Duration) Option {
	return func(c *Client) { c.throttle = utils.NewThrottle(minInterval) }
}

// NewClient creates a ready-to-use Client.
func NewClient(logger *zap.SugaredLogger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		throttle:   utils.NewThrottle(0),
		logger:     logger,
	}
	c.retry = &utils.RetryConfig{
		Classify: utils.IsNetworkError,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryPage runs a single query request against a layer.
func (c *Client) QueryPage(ctx context.Context, layerURL string, q Query) (*FeatureSet, error) {
	outFields := "*"
	if len(q.OutFields) > 0 {
		outFields = strings.Join(q.OutFields, ",")
	}
	where := q.Where
	if where == "" {
		where = "1=1"
	}

	form := url.Values{
		"f":              {"json"},
		"where":          {where},
		"outFields":      {outFields},
		"returnGeometry": {"false"},
	}
	if q.ResultOffset > 0 {
		form.Set("resultOffset", strconv.Itoa(q.ResultOffset))
	}
	if q.ResultRecordCount > 0 {
		form.Set("resultRecordCount", strconv.Itoa(q.ResultRecordCount))
	}
	if c.token != "" {
		form.Set("token", c.token)
	}

	var fs *FeatureSet
	err := c.retry.Do("arcgis query", func() error {
		c.throttle.Wait()
		page, err := c.post(ctx, strings.TrimRight(layerURL, "/")+"/query", form)
		if err != nil {
			return err
		}
		fs = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fs.Error != nil {
		return nil, fs.Error
	}
	return fs, nil
}

// QueryAll pages through a layer until a page comes back short and the
// service stops signalling exceededTransferLimit.
func (c *Client) QueryAll(ctx context.Context, layerURL string, q Query, pageSize int) ([]Feature, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var collected []Feature
	offset := q.ResultOffset
	for {
		page := q
		page.ResultOffset = offset
		page.ResultRecordCount = pageSize

		fs, err := c.QueryPage(ctx, layerURL, page)
		if err != nil {
			return nil, err
		}
		collected = append(collected, fs.Features...)

		if len(fs.Features) == 0 {
			break
		}
		if len(fs.Features) < pageSize && !fs.ExceededTransferLimit {
			break
		}
		offset += len(fs.Features)
	}

	c.logger.Debugf("[arcgis] %s returned %d features", layerURL, len(collected))
	return collected, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*FeatureSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("arcgis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arcgis: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arcgis: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var fs FeatureSet
	if err := json.NewDecoder(resp.Body).Decode(&fs); err != nil {
		return nil, fmt.Errorf("arcgis: decode response: %w", err)
	}
	return &fs, nil
}
