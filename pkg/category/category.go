// Package category defines the closed set of LinkedIn Marketing entity kinds
// and the static tables keyed by them: endpoint path, pivot and canonical columns.
//
// A new category is added by extending the enumeration and every table below
// in lockstep. The tables are arrays indexed by Category, so a missing entry
// is a compile error rather than a runtime lookup miss.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCategory is returned for a value outside the enumeration.
var ErrInvalidCategory = errors.New("invalid category")

// Category is the kind of advertising entity or metric being queried.
type Category int

const (
	// Account is an ad account (adAccountsV2). Only used to validate access.
	Account Category = iota

	// Group is a campaign group (adCampaignGroupsV2).
	Group

	// Campaign is a campaign (adCampaignsV2).
	Campaign

	// Creative is a creative (adCreativesV2).
	Creative

	// CampaignAnalytics is daily analytics pivoted by campaign (adAnalyticsV2).
	CampaignAnalytics

	// CreativeAnalytics is daily analytics pivoted by creative (adAnalyticsV2).
	CreativeAnalytics

	numCategories
)

// Column names shared by every table.
const (
	// IDColumn holds the entity id in listing categories.
	IDColumn = "id"

	// ExceptionColumn holds the stringified provider error for failure rows.
	ExceptionColumn = "exception"

	// RawResponseColumn holds the element JSON when raw output is requested.
	RawResponseColumn = "raw_response"
)

var names = [numCategories]string{
	Account:           "ACCOUNT",
	Group:             "GROUP",
	Campaign:          "CAMPAIGN",
	Creative:          "CREATIVES",
	CampaignAnalytics: "CAMPAIGN_ANALYTICS",
	CreativeAnalytics: "CREATIVES_ANALYTICS",
}

var paths = [numCategories]string{
	Account:           "adAccountsV2",
	Group:             "adCampaignGroupsV2",
	Campaign:          "adCampaignsV2",
	Creative:          "adCreativesV2",
	CampaignAnalytics: "adAnalyticsV2",
	CreativeAnalytics: "adAnalyticsV2",
}

var pivots = [numCategories]string{
	CampaignAnalytics: "CAMPAIGN",
	CreativeAnalytics: "CREATIVE",
}

// parents maps a child category to the category its id filter comes from.
// Group is filtered by configured account ids, not by a parent table.
var parents = [numCategories]Category{
	Account:           -1,
	Group:             -1,
	Campaign:          Group,
	Creative:          Campaign,
	CampaignAnalytics: Campaign,
	CreativeAnalytics: Creative,
}

var analyticsFields = []string{
	"dateRange",
	"pivot",
	"pivotValue",
	"impressions",
	"clicks",
	"landingPageClicks",
	"likes",
	"shares",
	"comments",
	"follows",
	"totalEngagements",
	"costInLocalCurrency",
	"costInUsd",
	"externalWebsiteConversions",
	"externalWebsitePostClickConversions",
	"externalWebsitePostViewConversions",
	"approximateUniqueImpressions",
	"videoViews",
	"videoCompletions",
	"oneClickLeads",
	"conversionValueInLocalCurrency",
}

var fields = [numCategories][]string{
	Account: {
		"id", "name", "currency", "status", "type", "reference", "servingStatuses",
		"notifiedOnCampaignOptimization", "notifiedOnCreativeApproval",
		"notifiedOnCreativeRejection", "notifiedOnEndOfCampaign",
		"version", "test", "changeAuditStamps",
	},
	Group: {
		"id", "name", "account", "status", "servingStatuses", "runSchedule",
		"totalBudget", "allowedCampaignTypes", "backfilled", "test", "changeAuditStamps",
	},
	Campaign: {
		"id", "name", "account", "campaignGroup", "status", "type", "costType",
		"objectiveType", "optimizationTargetType", "format", "locale", "dailyBudget",
		"unitCost", "runSchedule", "targeting", "targetingCriteria", "servingStatuses",
		"associatedEntity", "creativeSelection", "offsiteDeliveryEnabled",
		"audienceExpansionEnabled", "storyDeliveryEnabled", "version", "test",
		"changeAuditStamps",
	},
	Creative: {
		"id", "campaign", "type", "status", "reference", "review", "servingStatuses",
		"variables", "version", "test", "changeAuditStamps",
	},
	CampaignAnalytics: analyticsFields,
	CreativeAnalytics: analyticsFields,
}

// All returns every category in dependency order.
func All() []Category {
	return []Category{Account, Group, Campaign, Creative, CampaignAnalytics, CreativeAnalytics}
}

// Parse converts a category name (case-insensitive) to a Category.
func Parse(s string) (Category, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for c, name := range names {
		if name == upper {
			return Category(c), nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Valid reports whether c is part of the enumeration.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// String returns the provider-facing category name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return names[c]
}

// Path returns the endpoint path relative to the API base URL.
func (c Category) Path() (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidCategory, int(c))
	}
	return paths[c], nil
}

// IsAnalytics reports whether c is served by the non-paginated analytics endpoint.
func (c Category) IsAnalytics() bool {
	return c == CampaignAnalytics || c == CreativeAnalytics
}

// Pivot returns the analytics pivot for analytics categories, "" otherwise.
func (c Category) Pivot() string {
	if !c.Valid() {
		return ""
	}
	return pivots[c]
}

// Parent returns the category whose table supplies c's id filter.
func (c Category) Parent() (Category, bool) {
	if !c.Valid() || parents[c] < 0 {
		return -1, false
	}
	return parents[c], true
}

// Fields returns a copy of the provider field names for c.
func (c Category) Fields() []string {
	if !c.Valid() {
		return nil
	}
	out := make([]string, len(fields[c]))
	copy(out, fields[c])
	return out
}

// Columns returns the canonical column list for c: its fields followed by the
// exception column, plus the raw response column when includeRaw is set.
// Returns nil for an invalid category.
func Columns(c Category, includeRaw bool) []string {
	if !c.Valid() {
		return nil
	}
	cols := make([]string, 0, len(fields[c])+2)
	cols = append(cols, fields[c]...)
	cols = append(cols, ExceptionColumn)
	if includeRaw {
		cols = append(cols, RawResponseColumn)
	}
	return cols
}
