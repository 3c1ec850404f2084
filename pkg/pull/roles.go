package pull

import (
	"fmt"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
)

// Role names an output dataset a pull can produce.
type Role string

const (
	RoleGroups            Role = "campaign_group_dataset"
	RoleCampaigns         Role = "campaign_dataset"
	RoleCampaignAnalytics Role = "campaign_analytics_dataset"
	RoleCreatives         Role = "creative_dataset"
	RoleCreativeAnalytics Role = "creatives_analytics_dataset"
)

var roles = []Role{
	RoleGroups,
	RoleCampaigns,
	RoleCampaignAnalytics,
	RoleCreatives,
	RoleCreativeAnalytics,
}

var roleCategories = map[Role]category.Category{
	RoleGroups:            category.Group,
	RoleCampaigns:         category.Campaign,
	RoleCampaignAnalytics: category.CampaignAnalytics,
	RoleCreatives:         category.Creative,
	RoleCreativeAnalytics: category.CreativeAnalytics,
}

// Roles returns every output role in dependency order.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

// ParseRole returns the role named s.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCategories[r]; !ok {
		return "", fmt.Errorf("unknown output role %q", s)
	}
	return r, nil
}

// Category returns the category whose table fills r.
func (r Role) Category() category.Category {
	c, ok := roleCategories[r]
	if !ok {
		return -1
	}
	return c
}

// required returns the categories needed to produce outputs, which is the
// requested categories plus all their ancestors.
func required(outputs []Role) map[category.Category]bool {
	need := make(map[category.Category]bool)
	for _, r := range outputs {
		c := r.Category()
		for c.Valid() && !need[c] {
			need[c] = true
			parent, ok := c.Parent()
			if !ok {
				break
			}
			c = parent
		}
	}
	return need
}
