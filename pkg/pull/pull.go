// Package pull runs a full extraction: account validation followed by the
// group, campaign, creative and analytics tables in dependency order.
package pull

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/rs/zerolog"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/batch"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/metrics"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/pagination"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/sink"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/table"
)

// MaxBatchSize is the largest accepted batch size.
const MaxBatchSize = 600

var (
	// ErrAuthorization is returned when the account listing itself fails,
	// usually because of an invalid or expired token.
	ErrAuthorization = errors.New("authorization failed")

	// ErrAccountNotAccessible is returned when a configured account is not
	// visible to the token.
	ErrAccountNotAccessible = errors.New("account not accessible")
)

// order is the sequence in which categories are computed.
var order = []category.Category{
	category.Group,
	category.Campaign,
	category.CampaignAnalytics,
	category.Creative,
	category.CreativeAnalytics,
}

// Request describes one pull.
type Request struct {
	AccountIDs []string
	Dates      query.DateRange
	BatchSize  int
	PageSize   int
	IncludeRaw bool
	Outputs    []Role

	// Headers are sent with every request and carry Authorization.
	Headers http.Header
}

func (r *Request) normalize() error {
	if len(r.AccountIDs) == 0 {
		return fmt.Errorf("at least one account id is required")
	}
	if r.BatchSize == 0 {
		r.BatchSize = batch.DefaultBatchSize
	}
	if r.BatchSize < 1 || r.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d (got %d)", MaxBatchSize, r.BatchSize)
	}
	if r.PageSize <= 0 {
		r.PageSize = pagination.DefaultPageSize
	}
	for _, o := range r.Outputs {
		if _, err := ParseRole(string(o)); err != nil {
			return err
		}
	}
	return nil
}

// Results holds one table per requested output role.
type Results map[Role]*table.Table

// Puller runs pulls against one API.
type Puller struct {
	fetcher pagination.Fetcher
	builder *query.Builder
	logger  zerolog.Logger
}

// New creates a puller. fetcher is usually a *client.Client.
func New(fetcher pagination.Fetcher, builder *query.Builder, logger zerolog.Logger) *Puller {
	if builder == nil {
		builder = query.NewBuilder("")
	}
	return &Puller{
		fetcher: fetcher,
		builder: builder,
		logger:  logger.With().Str(logging.FieldComponent, "pull").Logger(),
	}
}

// ValidateAccounts lists the accounts visible to the token and checks that
// every configured account id is among them.
func (p *Puller) ValidateAccounts(ctx context.Context, req Request) (*table.Table, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	return p.validateAccounts(ctx, req)
}

func (p *Puller) validateAccounts(ctx context.Context, req Request) (*table.Table, error) {
	spec, err := p.builder.Build(category.Account, nil, query.DateRange{})
	if err != nil {
		return nil, err
	}

	resp, err := pagination.NewPaginator(p.fetcher, pagination.Config{PageSize: req.PageSize}, p.logger).
		Get(ctx, spec.URL, req.Headers, spec.Params)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := table.Format(resp, category.Account, false)
	if accounts.IsException() {
		return accounts, fmt.Errorf("%w: %v", ErrAuthorization, accounts.Rows[0][category.ExceptionColumn])
	}

	visible := accounts.IDs()
	for _, id := range req.AccountIDs {
		if !slices.Contains(visible, id) {
			return accounts, fmt.Errorf("%w: %s (visible: %v)", ErrAccountNotAccessible, id, visible)
		}
	}

	p.logger.Info().Int("accounts", len(visible)).Msg("Accounts validated")
	return accounts, nil
}

// Pull validates the accounts, then computes every category the requested
// outputs depend on. Failures of the provider land in the tables as
// exception rows; the error is non-nil for invalid requests, failed account
// validation and exhausted transport retries.
func (p *Puller) Pull(ctx context.Context, req Request) (results Results, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.PullsTotal.WithLabelValues(result).Inc()
	}()

	if err := req.normalize(); err != nil {
		return nil, err
	}
	if _, err := p.validateAccounts(ctx, req); err != nil {
		return nil, err
	}

	need := required(req.Outputs)
	tables := make(map[category.Category]*table.Table, len(need))

	for _, cat := range order {
		if !need[cat] {
			continue
		}
		t, err := p.pullCategory(ctx, cat, req, tables)
		if err != nil {
			return nil, err
		}
		tables[cat] = t

		p.logger.Info().
			Str(logging.FieldCategory, cat.String()).
			Int("rows", t.Len()).
			Bool("exception", t.IsException()).
			Msg("Category pulled")
	}

	results = make(Results, len(req.Outputs))
	for _, r := range req.Outputs {
		results[r] = tables[r.Category()]
	}
	return results, nil
}

func (p *Puller) pullCategory(ctx context.Context, cat category.Category, req Request, tables map[category.Category]*table.Table) (*table.Table, error) {
	logger := p.logger.With().Str(logging.FieldCategory, cat.String()).Logger()
	paginator := pagination.NewPaginator(p.fetcher, pagination.Config{PageSize: req.PageSize}, logger)

	if cat == category.Group {
		spec, err := p.builder.Build(cat, query.EncodeAccountIDs(req.AccountIDs), req.Dates)
		if err != nil {
			return nil, err
		}
		resp, err := paginator.Get(ctx, spec.URL, req.Headers, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("pull %s: %w", cat, err)
		}
		if elems, ok := resp.Elements(); ok {
			metrics.ElementsFetched.WithLabelValues(cat.String()).Add(float64(len(elems)))
		}
		return table.Format(resp, cat, req.IncludeRaw), nil
	}

	parentCat, _ := cat.Parent()
	parent := tables[parentCat]
	var ids []string
	if parent != nil && !parent.IsException() {
		ids = parent.IDs()
	}
	if len(ids) == 0 {
		logger.Warn().Str("parent", parentCat.String()).Msg("Parent table is empty or invalid - skipping")
		return table.NewException(cat, req.IncludeRaw, fmt.Sprintf("parent %s table is empty or invalid", parentCat)), nil
	}

	spec, err := p.builder.Build(cat, nil, req.Dates)
	if err != nil {
		return nil, err
	}

	var fetcher pagination.Fetcher = paginator
	if cat.IsAnalytics() {
		fetcher = p.fetcher
	}

	res, err := batch.NewDriver(fetcher, logger).Run(ctx, ids, cat, spec.URL, req.Headers, spec.Params, req.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", cat, err)
	}
	metrics.ElementsFetched.WithLabelValues(cat.String()).Add(float64(len(res.Elements)))

	if res.Stopped() {
		logger.Error().Int("chunks_issued", res.Issued).Int("chunks", res.Chunks).Msg("Batch stopped early")
	}
	return table.Format(res.Response(), cat, req.IncludeRaw), nil
}

// Publish writes each result table through w. names maps roles to dataset
// names; a role without a name is written under the role itself.
func Publish(ctx context.Context, w sink.Writer, results Results, names map[Role]string, logger zerolog.Logger) error {
	for _, r := range roles {
		t, ok := results[r]
		if !ok || t == nil {
			continue
		}
		name := names[r]
		if name == "" {
			name = string(r)
		}
		if err := w.Write(ctx, name, t.Columns, t.Cells()); err != nil {
			logger.Error().Err(err).Str(logging.FieldOutput, string(r)).Str("dataset", name).Msg("Dataset write failed")
			return fmt.Errorf("write %s: %w", r, err)
		}
		metrics.RowsWritten.WithLabelValues(string(r)).Add(float64(t.Len()))
		logger.Info().
			Str(logging.FieldOutput, string(r)).
			Str("dataset", name).
			Int("rows", t.Len()).
			Bool("exception", t.IsException()).
			Msg("Dataset written")
	}
	return nil
}
