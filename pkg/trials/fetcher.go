// Package trials fetches clinical trial records from the ClinicalTrials.gov
// v2 studies endpoint and flattens them into tabular rows.
package trials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trialscope/ctgov-client/pkg/client"
	"github.com/trialscope/ctgov-client/pkg/table"
)

// API endpoints under the v2 root.
const (
	studiesEndpoint = "/studies"
	versionEndpoint = "/version"
)

// Validation errors reported before any network call is made.
var (
	// ErrEmptyCondition is returned when the search condition is empty.
	ErrEmptyCondition = errors.New("condition must not be empty")

	// ErrInvalidPageSize is returned when the page size is not positive.
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// Prometheus metrics for fetch operations.
var (
	ctgovFetchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_fetch_pages_total",
		Help: "Total number of result pages fetched",
	})

	ctgovFetchStudiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_fetch_studies_total",
		Help: "Total number of study records fetched",
	})

	ctgovFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ctgov_fetch_duration_seconds",
		Help:    "Duration of complete fetch operations in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Query describes one studies search.
type Query struct {
	// Condition is the free-text medical condition to search for.
	Condition string

	// Status filters by overall recruitment status. Empty means no filter;
	// values outside the known set are passed through unchanged because the
	// API, not this client, decides what is valid.
	Status Status

	// PageSize bounds the number of records per request.
	PageSize int
}

// Validate checks the caller-supplied inputs.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Condition) == "" {
		return ErrEmptyCondition
	}
	if q.PageSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidPageSize, q.PageSize)
	}
	return nil
}

// VersionInfo reports the API version and the timestamp of its dataset.
type VersionInfo struct {
	APIVersion    string `json:"apiVersion"`
	DataTimestamp string `json:"dataTimestamp"`
}

// pageResponse is the envelope of one studies page.
type pageResponse struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken"`
	TotalCount    int               `json:"totalCount"`
}

// Fetcher retrieves matching studies page by page and accumulates flattened
// rows. Each Fetch call owns its own cursor and accumulator, so concurrent
// calls are independent.
type Fetcher struct {
	client *client.Client
	logger zerolog.Logger
}

// NewFetcher creates a fetcher on top of an API client.
func NewFetcher(c *client.Client) *Fetcher {
	return &Fetcher{
		client: c,
		logger: log.With().Str("component", "trials-fetcher").Logger(),
	}
}

// Fetch retrieves every study matching the query and returns one flattened
// row per study, in page order and within-page order. The pagination cursor
// is followed until the API stops returning one; each page request is
// retried per the client's retry policy, and a failure on one page never
// re-fetches earlier pages.
//
// On a page failure that exhausts retries, rows accumulated from earlier
// pages are discarded and only the error is returned.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (*table.Table, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.Status != "" && !q.Status.IsValid() {
		f.logger.Warn().
			Str("status", string(q.Status)).
			Msg("Status filter not in the known set, passing through to the API")
	}

	startTime := time.Now()
	defer func() {
		ctgovFetchDuration.Observe(time.Since(startTime).Seconds())
	}()

	params := url.Values{}
	params.Set("query.cond", q.Condition)
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("format", "json")
	if q.Status != "" {
		params.Set("filter.overallStatus", string(q.Status))
	}

	result := table.New(ColumnNames())
	pages := 0

	for {
		if pages == 0 {
			params.Set("countTotal", "true")
		} else {
			params.Del("countTotal")
		}

		var page pageResponse
		if err := f.client.GetJSON(ctx, studiesEndpoint, params, &page); err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}

		for _, raw := range page.Studies {
			row, err := FlattenStudy(raw)
			if err != nil {
				f.logger.Warn().Err(err).Msg("Study record could not be decoded")
			}
			result.Append(row)
		}

		pages++
		ctgovFetchPagesTotal.Inc()
		ctgovFetchStudiesTotal.Add(float64(len(page.Studies)))

		f.logger.Debug().
			Int("page", pages).
			Int("records", len(page.Studies)).
			Int("total_count", page.TotalCount).
			Bool("has_next", page.NextPageToken != "").
			Msg("Page fetched")

		if page.NextPageToken == "" {
			break
		}
		params.Set("pageToken", page.NextPageToken)
	}

	f.logger.Info().
		Str("condition", q.Condition).
		Str("status", string(q.Status)).
		Int("pages", pages).
		Int("studies", result.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Fetch complete")

	return result, nil
}

// Version reports the API version and dataset timestamp.
func (f *Fetcher) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := f.client.GetJSON(ctx, versionEndpoint, nil, &info); err != nil {
		return nil, fmt.Errorf("fetch version: %w", err)
	}
	return &info, nil
}
