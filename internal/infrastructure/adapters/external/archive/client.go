// Package archive is a client for the Internet Archive metadata and
// advanced search APIs.
package archive

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

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/narwhalmedia/deadarchive/internal/config"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

const maxBodySize = 32 << 20

var searchFields = []string{
	"identifier", "title", "date", "venue", "coverage", "source",
	"description", "avg_rating", "num_reviews",
}

// Client represents an Internet Archive API client
type Client struct {
	baseURL    string
	collection string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    []time.Duration
	logger     *zap.Logger
}

var _ catalog.RemoteCatalog = (*Client)(nil)

// NewClient creates a new archive client
func NewClient(cfg config.CatalogConfig, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		backoff: Backoff(cfg.RetryAttempts, cfg.RetryInitial, cfg.RetryMultiplier),
		logger:  logger.Named("archive"),
	}
}

// Backoff returns the waits between attempts: attempts-1 entries starting
// at initial and growing by multiplier.
func Backoff(attempts int, initial time.Duration, multiplier float64) []time.Duration {
	if attempts <= 1 {
		return nil
	}
	if multiplier < 1 {
		multiplier = 1
	}
	waits := make([]time.Duration, attempts-1)
	wait := float64(initial)
	for i := range waits {
		waits[i] = time.Duration(wait)
		wait *= multiplier
	}
	return waits
}

// FetchRecording retrieves one item with its files and reviews
func (c *Client) FetchRecording(ctx context.Context, id string) (*catalog.Recording, error) {
	if id == "" {
		return nil, apperrors.BadRequest("recording id is required")
	}

	var resp MetadataResponse
	if err := c.getJSON(ctx, "/metadata/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	// unknown identifiers answer 200 with an empty object
	if resp.Metadata == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("recording %s not found", id))
	}
	if resp.Metadata.Identifier.String() == "" {
		resp.Metadata.Identifier = flexString(id)
	}

	if len(resp.Reviews) == 0 {
		var reviews ReviewsResponse
		err := c.getJSON(ctx, "/metadata/"+url.PathEscape(id)+"/reviews", nil, &reviews)
		switch {
		case err == nil:
			resp.Reviews = reviews.Result
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			c.logger.Debug("reviews unavailable", zap.String("id", id), zap.Error(err))
		}
	}

	rec := resp.ToRecording(c.baseURL + "/download")
	if rec.Date == "" {
		return nil, apperrors.Malformed(fmt.Sprintf("recording %s has no date", id), nil)
	}
	return rec, nil
}

// Search runs an advanced search for recordings matching q
func (c *Client) Search(ctx context.Context, q catalog.Query, page, pageSize int) ([]*catalog.Recording, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	query, sort := c.buildQuery(q)
	params := url.Values{}
	params.Set("q", query)
	for _, f := range searchFields {
		params.Add("fl[]", f)
	}
	params.Set("sort[]", sort)
	params.Set("rows", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("output", "json")

	var resp SearchResponse
	if err := c.getJSON(ctx, "/advancedsearch.php", params, &resp); err != nil {
		return nil, err
	}

	recordings := make([]*catalog.Recording, 0, len(resp.Response.Docs))
	for i := range resp.Response.Docs {
		doc := &resp.Response.Docs[i]
		if doc.Identifier.String() == "" {
			continue
		}
		recordings = append(recordings, doc.ToRecording())
	}
	return recordings, nil
}

// buildQuery renders a classified query as Lucene syntax
func (c *Client) buildQuery(q catalog.Query) (string, string) {
	base := fmt.Sprintf("collection:%s AND mediatype:etree", c.collection)
	sort := "date asc"

	switch q.Kind {
	case catalog.QueryDate:
		return fmt.Sprintf("%s AND date:[%s TO %s]", base, q.Prefix, q.Prefix), sort
	case catalog.QueryMonth:
		return fmt.Sprintf("%s AND date:[%s-01 TO %s-31]", base, q.Prefix, q.Prefix), sort
	case catalog.QueryYear, catalog.QueryYearRange:
		return fmt.Sprintf("%s AND year:[%d TO %d]", base, q.YearFrom, q.YearTo), sort
	case catalog.QueryVenue:
		return fmt.Sprintf("%s AND venue:(%s)", base, escapeLucene(q.Text)), sort
	case catalog.QueryLocation:
		return fmt.Sprintf("%s AND coverage:(%s)", base, escapeLucene(q.Text)), sort
	case catalog.QueryText:
		return fmt.Sprintf("%s AND (%s)", base, escapeLucene(q.Text)), sort
	default:
		return base, "date desc"
	}
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	r := retrier.New(c.backoff, classifier{})
	attempt := 0
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, endpoint, out)
		if err != nil && apperrors.IsRetryable(err) {
			c.logger.Warn("archive request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeInternal, "creating request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Transient("executing request", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Transient("reading response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Malformed("decoding response", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(fmt.Sprintf("%s not found", resp.Request.URL.Path))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return apperrors.RateLimited(fmt.Sprintf("archive answered %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return apperrors.Transient(fmt.Sprintf("archive answered %d", resp.StatusCode), nil)
	default:
		return apperrors.BadRequest(fmt.Sprintf("archive answered %d", resp.StatusCode))
	}
}

// classifier retries transient and rate-limited failures only
type classifier struct{}

func (classifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case apperrors.IsRetryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `!`, `\!`, `(`, `\(`, `)`, `\)`,
	`{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`, `^`, `\^`, `"`, `\"`,
	`~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`, `&`, `\&`, `|`, `\|`,
)

func escapeLucene(s string) string {
	return luceneEscaper.Replace(s)
}
