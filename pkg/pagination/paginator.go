package pagination

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
)

// DefaultPageSize is the count requested per page.
const DefaultPageSize = 100

var pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "linkedin_pages_fetched_total",
	Help: "Listing pages fetched by result",
}, []string{"result"})

// Fetcher fetches a single response. *client.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, headers http.Header, params query.Params) (client.Response, error)
}

// Config holds paginator configuration
type Config struct {
	// PageSize is the count requested per page (default 100)
	PageSize int
}

// DefaultConfig returns the default paginator configuration
func DefaultConfig() Config {
	return Config{PageSize: DefaultPageSize}
}

// Paginator drives sequential page requests over a Fetcher.
type Paginator struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewPaginator creates a paginator
func NewPaginator(fetcher Fetcher, config Config, logger zerolog.Logger) *Paginator {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Paginate runs Paginator.Paginate with the given page size.
func Paginate(ctx context.Context, fetcher Fetcher, url string, headers http.Header, params query.Params, pageSize int) (client.Response, error) {
	return NewPaginator(fetcher, Config{PageSize: pageSize}, zerolog.Nop()).Paginate(ctx, url, headers, params)
}

// Get implements Fetcher by paginating.
func (p *Paginator) Get(ctx context.Context, url string, headers http.Header, params query.Params) (client.Response, error) {
	return p.Paginate(ctx, url, headers, params)
}

// Paginate fetches every page of url and merges their elements. The result
// carries the first page's paging block. An error is returned only for
// transport failures reported by the fetcher.
func (p *Paginator) Paginate(ctx context.Context, url string, headers http.Header, params query.Params) (client.Response, error) {
	size := p.config.PageSize

	first, err := p.fetchPage(ctx, url, headers, params, 0)
	if err != nil {
		return nil, err
	}

	paging, ok := first.Paging()
	if !ok {
		p.logger.Error().
			Str(logging.FieldURL, url).
			Int(logging.FieldStatus, first.Status()).
			Msg("Response has no paging information")
		pagesFetched.WithLabelValues("invalid").Inc()
		return client.NewErrorPayload(first.Status(), "response has no paging information", first), nil
	}

	elements, ok := first.Elements()
	if !ok {
		pagesFetched.WithLabelValues("invalid").Inc()
		return client.NewErrorPayload(first.Status(), "response has no elements", first), nil
	}
	pagesFetched.WithLabelValues("ok").Inc()

	all := append(make([]any, 0, len(elements)), elements...)
	var exceptions []any

	for start := size; start < paging.Total && len(elements) > 0; start += size {
		page, err := p.fetchPage(ctx, url, headers, params, start)
		if err != nil {
			return nil, err
		}

		elems, ok := page.Elements()
		if !ok {
			p.logger.Warn().
				Str(logging.FieldURL, url).
				Int("start", start).
				Int("total", paging.Total).
				Int(logging.FieldElements, len(all)).
				Msg("Page without elements - stopping pagination")
			pagesFetched.WithLabelValues("invalid").Inc()
			exceptions = append(exceptions, map[string]any{
				"start":    start,
				"count":    size,
				"response": map[string]any(page),
			})
			break
		}

		pagesFetched.WithLabelValues("ok").Inc()
		if len(elems) == 0 {
			p.logger.Warn().
				Str(logging.FieldURL, url).
				Int("start", start).
				Int("total", paging.Total).
				Int(logging.FieldElements, len(all)).
				Msg("Empty page before reported total - stopping pagination")
			break
		}
		all = append(all, elems...)
	}

	p.logger.Debug().
		Str(logging.FieldURL, url).
		Int(logging.FieldElements, len(all)).
		Int("total", paging.Total).
		Msg("Pagination complete")

	resp := client.Response{
		client.KeyPaging:   first[client.KeyPaging],
		client.KeyElements: all,
	}
	if len(exceptions) > 0 {
		resp[client.KeyExceptions] = exceptions
	}
	return resp, nil
}

func (p *Paginator) fetchPage(ctx context.Context, url string, headers http.Header, params query.Params, start int) (client.Response, error) {
	pageParams := params.Merge(query.Params{
		"count": strconv.Itoa(p.config.PageSize),
		"start": strconv.Itoa(start),
	})
	return p.fetcher.Get(ctx, url, headers, pageParams)
}
