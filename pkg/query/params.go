package query

import (
	"fmt"
	"strings"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
)

// DefaultBaseURL is the LinkedIn Marketing API root.
const DefaultBaseURL = "https://api.linkedin.com/v2"

// Params is a flat query-string parameter set.
type Params map[string]string

// Merge returns a new Params holding p overlaid by each of others in order.
func (p Params) Merge(others ...Params) Params {
	size := len(p)
	for _, o := range others {
		size += len(o)
	}
	out := make(Params, size)
	for k, v := range p {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	return p.Merge()
}

// Spec is a fully built request: the category, its endpoint URL and parameters.
type Spec struct {
	Category category.Category
	URL      string
	Params   Params
}

// Builder produces per-category request specs against a base URL.
type Builder struct {
	baseURL string
}

// NewBuilder creates a builder rooted at baseURL (DefaultBaseURL when empty).
func NewBuilder(baseURL string) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Builder{baseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns the endpoint URL for c.
func (b *Builder) URL(c category.Category) (string, error) {
	path, err := c.Path()
	if err != nil {
		return "", err
	}
	return b.baseURL + "/" + path, nil
}

// Build returns the URL and base parameters for c.
//
// Listing categories merge accountFilter with the search finder. Analytics
// categories get the analytics envelope starting 1/1/2006 at daily
// granularity, overridden by dates. Account ignores accountFilter.
func (b *Builder) Build(c category.Category, accountFilter Params, dates DateRange) (Spec, error) {
	url, err := b.URL(c)
	if err != nil {
		return Spec{}, err
	}

	var params Params
	switch c {
	case category.Account:
		params = Params{"q": "search"}
	case category.Group, category.Campaign, category.Creative:
		params = accountFilter.Merge(Params{"q": "search"})
	case category.CampaignAnalytics, category.CreativeAnalytics:
		params = analyticsEnvelope(c).Merge(dates.Params())
	default:
		return Spec{}, fmt.Errorf("%w: %v", category.ErrInvalidCategory, c)
	}

	return Spec{Category: c, URL: url, Params: params}, nil
}

func analyticsEnvelope(c category.Category) Params {
	return Params{
		"q":                     "analytics",
		"pivot":                 c.Pivot(),
		"dateRange.start.day":   "1",
		"dateRange.start.month": "1",
		"dateRange.start.year":  fmt.Sprint(MinYear),
		"timeGranularity":       "DAILY",
		"fields":                strings.Join(c.Fields(), ","),
	}
}
