package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kitsune-client/internal/model"
	"kitsune-client/internal/utils"
	"kitsune-client/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

var (
	// ErrFeedClosed means the server ended the push feed cleanly.
	ErrFeedClosed  = errors.New("notebook feed closed by server")
	ErrNoViewerURL = errors.New("viewer url missing from response")
)

// Source delivers registry snapshots for a session. Watch blocks until the
// connection ends or ctx is cancelled, calling fn for each snapshot in
// arrival order.
type Source interface {
	Watch(ctx context.Context, sessionID model.SessionToken, fn func([]model.Notebook)) error
}

// Resolver looks up the viewer root for a session.
type Resolver interface {
	ViewerURL(ctx context.Context, sessionID model.SessionToken) (string, error)
}

// FeedClient reads the registry push feed over server-sent events. The
// session travels as a query parameter because event streams cannot carry
// custom headers in browsers, and the backend keeps that contract.
type FeedClient struct {
	endpoint string
	http     *http.Client
}

func NewFeedClient(baseURL, watchPath string, httpClient *http.Client) *FeedClient {
	if httpClient == nil {
		httpClient = utils.NewStreamingClient(30 * time.Second)
	}
	return &FeedClient{
		endpoint: strings.TrimRight(baseURL, "/") + watchPath,
		http:     httpClient,
	}
}

func (c *FeedClient) Watch(ctx context.Context, sessionID model.SessionToken, fn func([]model.Notebook)) error {
	u := c.endpoint + "?session_id=" + url.QueryEscape(sessionID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	log := logger.WithField("session", sessionID)
	log.Debug("notebook feed connected")

	reader := utils.NewSSEReader(resp.Body)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return ErrFeedClosed
		}
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if event.Event != "" && event.Event != "message" {
			continue
		}

		var list []model.Notebook
		if err := json.Unmarshal([]byte(event.Data), &list); err != nil {
			log.Warnf("skipping undecodable registry snapshot: %v", err)
			continue
		}
		fn(list)
	}
}

// ViewerClient performs the one-shot viewer base address lookup.
type ViewerClient struct {
	resty  *resty.Client
	path   string
	header string
}

type ViewerOptions struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// SessionHeader, when set, also carries the token as a header.
	SessionHeader string
	// Limiter, when set, paces requests to the backend.
	Limiter *rate.Limiter
}

// NewViewerClient builds the lookup client. path may contain "{session}".
func NewViewerClient(baseURL, path string, opts ViewerOptions) *ViewerClient {
	httpClient := utils.Limited(utils.NewHTTPClient(opts.Timeout), opts.Limiter)

	r := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWaitMin).
		SetRetryMaxWaitTime(opts.RetryWaitMax).
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryPolicy)

	return &ViewerClient{resty: r, path: path, header: opts.SessionHeader}
}

// retryPolicy applies the retryablehttp rules: connection errors, 429 and
// 5xx other than 501 are retried.
func retryPolicy(resp *resty.Response, err error) bool {
	ctx := context.Background()
	var raw *http.Response
	if resp != nil {
		raw = resp.RawResponse
		if resp.Request != nil {
			ctx = resp.Request.Context()
		}
	}
	if raw == nil && err == nil {
		return false
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, raw, err)
	return retry
}

func (c *ViewerClient) ViewerURL(ctx context.Context, sessionID model.SessionToken) (string, error) {
	var out model.ViewerResponse

	req := c.resty.R()
	if c.header != "" {
		req.SetHeader(c.header, sessionID.String())
	}
	resp, err := req.
		SetContext(ctx).
		SetPathParam("session", sessionID.String()).
		SetResult(&out).
		ForceContentType("application/json").
		Get(c.path)
	if err != nil {
		return "", fmt.Errorf("fetch viewer url: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch viewer url: status %d", resp.StatusCode())
	}
	if out.URL == "" {
		return "", ErrNoViewerURL
	}
	return out.URL, nil
}
