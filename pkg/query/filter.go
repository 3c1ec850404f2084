package query

import (
	"fmt"
	"strings"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
)

// URN prefixes of the sponsored entities.
const (
	URNSponsoredAccount       = "urn:li:sponsoredAccount:"
	URNSponsoredCampaignGroup = "urn:li:sponsoredCampaignGroup:"
	URNSponsoredCampaign      = "urn:li:sponsoredCampaign:"
	URNSponsoredCreative      = "urn:li:sponsoredCreative:"
)

type filterTemplate struct {
	key string // fmt pattern taking the index
	urn string
}

// filters holds the id filter used when querying a category. Group is
// filtered by account.
var filters = map[category.Category]filterTemplate{
	category.Group:             {key: "search.account.values[%d]", urn: URNSponsoredAccount},
	category.Campaign:          {key: "search.campaignGroup.values[%d]", urn: URNSponsoredCampaignGroup},
	category.Creative:          {key: "search.campaign.values[%d]", urn: URNSponsoredCampaign},
	category.CampaignAnalytics: {key: "campaigns[%d]", urn: URNSponsoredCampaign},
	category.CreativeAnalytics: {key: "creatives[%d]", urn: URNSponsoredCreative},
}

func filterFor(c category.Category) (filterTemplate, error) {
	f, ok := filters[c]
	if !ok {
		return filterTemplate{}, fmt.Errorf("%w: %v has no id filter", category.ErrInvalidCategory, c)
	}
	return f, nil
}

// EncodeIDs emits one indexed, URN-qualified parameter per id for querying c.
// Order is preserved and duplicates are kept under distinct indices.
func EncodeIDs(ids []string, c category.Category) (Params, error) {
	f, err := filterFor(c)
	if err != nil {
		return nil, err
	}
	params := make(Params, len(ids))
	for i, id := range ids {
		params[fmt.Sprintf(f.key, i)] = f.urn + id
	}
	return params, nil
}

// EncodeAccountIDs builds the search.account.values[i] filter for account ids.
func EncodeAccountIDs(ids []string) Params {
	params, _ := EncodeIDs(ids, category.Group)
	return params
}

// DecodeIDs reverses EncodeIDs: it reads the indexed keys for c from 0 upward
// and strips the URN prefix. Keys not belonging to the filter are ignored.
func DecodeIDs(params Params, c category.Category) ([]string, error) {
	f, err := filterFor(c)
	if err != nil {
		return nil, err
	}
	var ids []string
	for i := 0; ; i++ {
		v, ok := params[fmt.Sprintf(f.key, i)]
		if !ok {
			break
		}
		if !strings.HasPrefix(v, f.urn) {
			return nil, fmt.Errorf("filter value %q at index %d lacks prefix %q", v, i, f.urn)
		}
		ids = append(ids, strings.TrimPrefix(v, f.urn))
	}
	return ids, nil
}
