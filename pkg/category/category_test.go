package category

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Category
		wantErr  bool
	}{
		{name: "account", input: "ACCOUNT", expected: Account},
		{name: "lower case group", input: "group", expected: Group},
		{name: "creatives", input: "CREATIVES", expected: Creative},
		{name: "campaign analytics", input: " campaign_analytics ", expected: CampaignAnalytics},
		{name: "creative analytics", input: "CREATIVES_ANALYTICS", expected: CreativeAnalytics},
		{name: "unknown", input: "ADSET", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCategory) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidCategory", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTablesCoverEveryCategory(t *testing.T) {
	for _, c := range All() {
		if _, err := c.Path(); err != nil {
			t.Errorf("%v: Path() error: %v", c, err)
		}
		if len(c.Fields()) == 0 {
			t.Errorf("%v: no fields", c)
		}
		if got, err := Parse(c.String()); err != nil || got != c {
			t.Errorf("%v: String/Parse round trip = %v, %v", c, got, err)
		}
	}
}

func TestInvalidCategory(t *testing.T) {
	bad := Category(42)

	if bad.Valid() {
		t.Error("Category(42) should not be valid")
	}
	if _, err := bad.Path(); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("Path() error = %v, want ErrInvalidCategory", err)
	}
	if cols := Columns(bad, true); cols != nil {
		t.Errorf("Columns() = %v, want nil", cols)
	}
	if bad.String() != "Category(42)" {
		t.Errorf("String() = %q", bad.String())
	}
}

func TestColumns(t *testing.T) {
	cols := Columns(Group, false)
	if cols[len(cols)-1] != ExceptionColumn {
		t.Errorf("last column = %q, want %q", cols[len(cols)-1], ExceptionColumn)
	}
	if len(cols) != len(Group.Fields())+1 {
		t.Errorf("len(Columns) = %d, want %d", len(cols), len(Group.Fields())+1)
	}

	withRaw := Columns(Group, true)
	if withRaw[len(withRaw)-1] != RawResponseColumn {
		t.Errorf("last column = %q, want %q", withRaw[len(withRaw)-1], RawResponseColumn)
	}
}

func TestFieldsReturnsCopy(t *testing.T) {
	f := Campaign.Fields()
	f[0] = "mutated"
	if Campaign.Fields()[0] != "id" {
		t.Error("Fields() must not expose the shared table")
	}
}

func TestParentAndPivot(t *testing.T) {
	tests := []struct {
		category  Category
		parent    Category
		hasParent bool
		pivot     string
	}{
		{Account, -1, false, ""},
		{Group, -1, false, ""},
		{Campaign, Group, true, ""},
		{Creative, Campaign, true, ""},
		{CampaignAnalytics, Campaign, true, "CAMPAIGN"},
		{CreativeAnalytics, Creative, true, "CREATIVE"},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			parent, ok := tt.category.Parent()
			if ok != tt.hasParent || (ok && parent != tt.parent) {
				t.Errorf("Parent() = %v, %v, want %v, %v", parent, ok, tt.parent, tt.hasParent)
			}
			if got := tt.category.Pivot(); got != tt.pivot {
				t.Errorf("Pivot() = %q, want %q", got, tt.pivot)
			}
			if tt.category.IsAnalytics() != (tt.pivot != "") {
				t.Errorf("IsAnalytics() = %v", tt.category.IsAnalytics())
			}
		})
	}
}
