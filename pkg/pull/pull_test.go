package pull

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataiku/dss-plugin-linkedin-marketing/internal/testutil"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/table"
)

const (
	pathAccounts  = "/adAccountsV2"
	pathGroups    = "/adCampaignGroupsV2"
	pathCampaigns = "/adCampaignsV2"
	pathCreatives = "/adCreativesV2"
	pathAnalytics = "/adAnalyticsV2"
)

func newPuller(t *testing.T, mock *testutil.MockLinkedIn) *Puller {
	t.Helper()
	c, err := client.New(client.Config{
		HTTPClient: mock.Client(),
		UserAgent:  client.DefaultUserAgent,
		Retry:      client.RetryConfig{MaxAttempts: 1},
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return New(c, query.NewBuilder(mock.URL()), zerolog.Nop())
}

func authHeaders() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer test-token")
	return h
}

// analyticsHandler answers with one row per requested pivot value.
func analyticsHandler(w http.ResponseWriter, r *http.Request) {
	var elems []map[string]any
	for key, values := range r.URL.Query() {
		if strings.HasPrefix(key, "campaigns[") || strings.HasPrefix(key, "creatives[") {
			elems = append(elems, map[string]any{
				"pivot":       r.URL.Query().Get("pivot"),
				"pivotValue":  values[0],
				"impressions": 42,
			})
		}
	}
	testutil.PagedHandler(elems)(w, r)
}

func seedHappyPath(mock *testutil.MockLinkedIn) {
	mock.SetElements(pathAccounts, testutil.Elements(1, 1, nil))
	mock.SetElements(pathGroups, testutil.Elements(10, 3, nil))
	mock.SetElements(pathCampaigns, testutil.Elements(100, 2, nil))
	mock.SetElements(pathCreatives, testutil.Elements(1000, 2, nil))
	mock.SetHandler(pathAnalytics, analyticsHandler)
}

func TestPull_AllOutputs(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)

	p := newPuller(t, mock)
	res, err := p.Pull(context.Background(), Request{
		AccountIDs: []string{"1"},
		PageSize:   2,
		Outputs:    Roles(),
		Headers:    authHeaders(),
	})
	require.NoError(t, err)
	require.Len(t, res, 5)

	groups := res[RoleGroups]
	require.NotNil(t, groups)
	assert.Equal(t, []string{"10", "11", "12"}, groups.IDs(), "pagination returns exactly total")
	assert.Equal(t, 2, mock.RequestCount(pathGroups), "3 groups at page size 2")
	assert.Equal(t, category.Columns(category.Group, false), groups.Columns)

	assert.Equal(t, []string{"100", "101"}, res[RoleCampaigns].IDs())
	assert.Equal(t, []string{"1000", "1001"}, res[RoleCreatives].IDs())
	assert.Equal(t, 2, res[RoleCampaignAnalytics].Len())
	assert.Equal(t, 2, res[RoleCreativeAnalytics].Len())
	assert.False(t, res[RoleCreativeAnalytics].IsException())

	// The group filter carries the configured accounts.
	gq := mock.Queries(pathGroups)[0]
	assert.Equal(t, "urn:li:sponsoredAccount:1", gq.Get("search.account.values[0]"))
	assert.Equal(t, "search", gq.Get("q"))

	// Campaigns are filtered by the group ids.
	cq := mock.Queries(pathCampaigns)[0]
	assert.Equal(t, "urn:li:sponsoredCampaignGroup:12", cq.Get("search.campaignGroup.values[2]"))

	assert.Equal(t, "Bearer test-token", mock.LastRequestHeader().Get("Authorization"))
}

func TestPull_AnalyticsDates(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)

	start, err := query.ParseDate("2024-03-01")
	require.NoError(t, err)

	p := newPuller(t, mock)
	_, err = p.Pull(context.Background(), Request{
		AccountIDs: []string{"1"},
		Dates:      query.DateRange{Start: &start},
		Outputs:    []Role{RoleCampaignAnalytics},
		Headers:    authHeaders(),
	})
	require.NoError(t, err)

	qs := mock.Queries(pathAnalytics)
	require.Len(t, qs, 1)
	assert.Equal(t, "analytics", qs[0].Get("q"))
	assert.Equal(t, "CAMPAIGN", qs[0].Get("pivot"))
	assert.Equal(t, "2024", qs[0].Get("dateRange.start.year"))
	assert.Equal(t, "3", qs[0].Get("dateRange.start.month"))
	assert.Equal(t, "DAILY", qs[0].Get("timeGranularity"))
}

func TestPull_AccountNotVisible(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)

	p := newPuller(t, mock)
	_, err := p.Pull(context.Background(), Request{
		AccountIDs: []string{"1", "2"},
		Outputs:    Roles(),
		Headers:    authHeaders(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountNotAccessible))
	assert.Contains(t, err.Error(), "2")
	assert.Zero(t, mock.RequestCount(pathGroups), "no data request after failed validation")
}

func TestPull_AuthorizationFailure(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	mock.SetResponse(pathAccounts, testutil.NewErrorResponse(http.StatusUnauthorized, "Invalid access token"))

	p := newPuller(t, mock)
	accounts, err := p.ValidateAccounts(context.Background(), Request{
		AccountIDs: []string{"1"},
		Headers:    authHeaders(),
	})
	require.ErrorIs(t, err, ErrAuthorization)
	require.NotNil(t, accounts)
	assert.True(t, accounts.IsException())
}

func TestPull_ExceptionParentShortCircuits(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)
	mock.SetResponse(pathGroups, testutil.NewErrorResponse(http.StatusBadRequest, "Invalid query parameters"))

	p := newPuller(t, mock)
	res, err := p.Pull(context.Background(), Request{
		AccountIDs: []string{"1"},
		Outputs:    Roles(),
		Headers:    authHeaders(),
	})
	require.NoError(t, err)

	assert.True(t, res[RoleGroups].IsException())
	for _, r := range []Role{RoleCampaigns, RoleCampaignAnalytics, RoleCreatives, RoleCreativeAnalytics} {
		require.True(t, res[r].IsException(), "role %s", r)
		require.Equal(t, 1, res[r].Len())
	}
	assert.Equal(t, "parent GROUP table is empty or invalid", res[RoleCampaigns].Rows[0][category.ExceptionColumn])
	assert.Equal(t, "parent CAMPAIGN table is empty or invalid", res[RoleCreatives].Rows[0][category.ExceptionColumn])
	assert.Equal(t, "parent CREATIVES table is empty or invalid", res[RoleCreativeAnalytics].Rows[0][category.ExceptionColumn])

	assert.Zero(t, mock.RequestCount(pathCampaigns))
	assert.Zero(t, mock.RequestCount(pathCreatives))
	assert.Zero(t, mock.RequestCount(pathAnalytics))
}

func TestPull_EmptyParent(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)
	mock.SetElements(pathGroups, nil)

	p := newPuller(t, mock)
	res, err := p.Pull(context.Background(), Request{
		AccountIDs: []string{"1"},
		Outputs:    []Role{RoleGroups, RoleCampaigns},
		Headers:    authHeaders(),
	})
	require.NoError(t, err)

	assert.True(t, res[RoleGroups].IsEmpty())
	assert.False(t, res[RoleGroups].IsException())
	assert.True(t, res[RoleCampaigns].IsException())
	assert.Zero(t, mock.RequestCount(pathCampaigns))
}

func TestPull_SkipsUnrequestedBranches(t *testing.T) {
	tests := []struct {
		name    string
		outputs []Role
		called  []string
		skipped []string
	}{
		{
			name:    "groups only",
			outputs: []Role{RoleGroups},
			called:  []string{pathGroups},
			skipped: []string{pathCampaigns, pathCreatives, pathAnalytics},
		},
		{
			name:    "campaign analytics pulls its ancestors only",
			outputs: []Role{RoleCampaignAnalytics},
			called:  []string{pathGroups, pathCampaigns, pathAnalytics},
			skipped: []string{pathCreatives},
		},
		{
			name:    "creatives",
			outputs: []Role{RoleCreatives},
			called:  []string{pathGroups, pathCampaigns, pathCreatives},
			skipped: []string{pathAnalytics},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockLinkedIn()
			defer mock.Close()
			seedHappyPath(mock)

			p := newPuller(t, mock)
			res, err := p.Pull(context.Background(), Request{
				AccountIDs: []string{"1"},
				Outputs:    tt.outputs,
				Headers:    authHeaders(),
			})
			require.NoError(t, err)
			assert.Len(t, res, len(tt.outputs))

			for _, path := range tt.called {
				assert.NotZero(t, mock.RequestCount(path), "expected requests to %s", path)
			}
			for _, path := range tt.skipped {
				assert.Zero(t, mock.RequestCount(path), "unexpected requests to %s", path)
			}
		})
	}
}

func TestPull_BatchFailureKeepsEarlierChunks(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)
	mock.SetElements(pathCampaigns, testutil.Elements(100, 5, nil))

	calls := 0
	mock.SetHandler(pathAnalytics, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":400,"message":"Request too large"}`))
			return
		}
		analyticsHandler(w, r)
	})

	p := newPuller(t, mock)
	res, err := p.Pull(context.Background(), Request{
		AccountIDs: []string{"1"},
		BatchSize:  2,
		Outputs:    []Role{RoleCampaignAnalytics},
		Headers:    authHeaders(),
	})
	require.NoError(t, err)

	analytics := res[RoleCampaignAnalytics]
	assert.Equal(t, 2, mock.RequestCount(pathAnalytics), "third chunk is never issued")
	require.Equal(t, 3, analytics.Len())
	assert.False(t, analytics.Rows[0].IsException())
	assert.False(t, analytics.Rows[1].IsException())
	assert.True(t, analytics.Rows[2].IsException())
	assert.Contains(t, analytics.Rows[2][category.ExceptionColumn], "reduce the batch size")
}

func TestPull_InvalidRequest(t *testing.T) {
	mock := testutil.NewMockLinkedIn()
	defer mock.Close()
	seedHappyPath(mock)
	p := newPuller(t, mock)

	_, err := p.Pull(context.Background(), Request{AccountIDs: []string{"1"}, BatchSize: 601, Outputs: Roles()})
	assert.Error(t, err)

	_, err = p.Pull(context.Background(), Request{Outputs: Roles()})
	assert.Error(t, err)

	_, err = p.Pull(context.Background(), Request{AccountIDs: []string{"1"}, Outputs: []Role{"ads_dataset"}})
	assert.Error(t, err)

	assert.Zero(t, mock.TotalRequests())
}

func TestRequired(t *testing.T) {
	need := required([]Role{RoleCreativeAnalytics})
	assert.True(t, need[category.Group])
	assert.True(t, need[category.Campaign])
	assert.True(t, need[category.Creative])
	assert.True(t, need[category.CreativeAnalytics])
	assert.False(t, need[category.CampaignAnalytics])

	assert.Empty(t, required(nil))
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
		assert.True(t, r.Category().Valid())
	}
	_, err := ParseRole("account_dataset")
	assert.Error(t, err)
}

type memWriter struct {
	names   []string
	columns map[string][]string
	rows    map[string][][]any
	err     error
}

func (m *memWriter) Write(_ context.Context, name string, columns []string, rows [][]any) error {
	if m.err != nil {
		return m.err
	}
	m.names = append(m.names, name)
	m.columns[name] = columns
	m.rows[name] = rows
	return nil
}

func TestPublish(t *testing.T) {
	w := &memWriter{columns: map[string][]string{}, rows: map[string][][]any{}}

	groups := table.New(category.Group, false)
	groups.Rows = append(groups.Rows, table.Row{"id": "10", "name": "Q1"})
	campaigns := table.NewException(category.Campaign, true, "parent GROUP table is empty or invalid")

	results := Results{RoleCampaigns: campaigns, RoleGroups: groups}
	var logs bytes.Buffer
	err := Publish(context.Background(), w, results, map[Role]string{RoleGroups: "li_groups"}, zerolog.New(&logs))
	require.NoError(t, err)

	assert.Equal(t, []string{"li_groups", "campaign_dataset"}, w.names, "written in dependency order")
	assert.Equal(t, "10", w.rows["li_groups"][0][0])
	assert.Equal(t, category.Columns(category.Campaign, true), w.columns["campaign_dataset"])

	assert.Equal(t, 2, strings.Count(logs.String(), `"message":"Dataset written"`))
	assert.Contains(t, logs.String(), `"output":"campaign_group_dataset","dataset":"li_groups","rows":1`)

	w.err = errors.New("disk full")
	assert.Error(t, Publish(context.Background(), w, results, nil, zerolog.Nop()))
}
