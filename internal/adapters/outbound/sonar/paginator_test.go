package sonar_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflectsonar/reflectsonar/internal/adapters/outbound/sonar"
)

// pagedServer serves total numbered items in pages of the requested size.
type pagedServer struct {
	total     int
	itemsKey  string
	nested    bool
	stopAfter int
	calls     []url.Values
}

func (s *pagedServer) Get(_ context.Context, endpoint string, params url.Values) ([]byte, error) {
	s.calls = append(s.calls, params)
	page, _ := strconv.Atoi(params.Get("p"))
	size, _ := strconv.Atoi(params.Get("ps"))

	items := []map[string]string{}
	if s.stopAfter == 0 || page <= s.stopAfter {
		for i := (page - 1) * size; i < min(page*size, s.total); i++ {
			items = append(items, map[string]string{"key": fmt.Sprintf("item-%04d", i)})
		}
	}

	doc := map[string]any{s.itemsKey: items}
	if s.nested {
		doc["paging"] = map[string]int{"pageIndex": page, "pageSize": size, "total": s.total}
	} else {
		doc["total"] = s.total
	}
	return json.Marshal(doc)
}

func keysOf(t *testing.T, raw []json.RawMessage) []string {
	t.Helper()
	keys := make([]string, 0, len(raw))
	for _, r := range raw {
		var item struct{ Key string }
		require.NoError(t, json.Unmarshal(r, &item))
		keys = append(keys, item.Key)
	}
	return keys
}

func TestEndpointFor(t *testing.T) {
	tests := []struct {
		path  string
		items string
		total string
	}{
		{"api/issues/search", "issues", "total"},
		{"api/hotspots/search", "hotspots", "paging.total"},
		{"api/components/tree", "components", "paging.total"},
	}
	for _, tt := range tests {
		ep := sonar.EndpointFor(tt.path)
		assert.Equal(t, tt.items, ep.ItemsField, tt.path)
		assert.Equal(t, tt.total, ep.TotalFields[0], tt.path)
	}
}

func TestPaginator_FetchesEveryPage(t *testing.T) {
	srv := &pagedServer{total: 1200, itemsKey: "issues"}
	rec := &sleepRecorder{}
	p := sonar.NewPaginator(srv, sonar.WithPageSize(500), sonar.WithPageSleep(rec.sleep))

	params := url.Values{"componentKeys": {"demo"}}
	items, err := p.FetchAll(context.Background(), "api/issues/search", params)
	require.NoError(t, err)

	assert.Len(t, srv.calls, 3)
	keys := keysOf(t, items)
	require.Len(t, keys, 1200)
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		assert.Equal(t, fmt.Sprintf("item-%04d", i), k)
		assert.False(t, seen[k], "duplicate %s", k)
		seen[k] = true
	}

	assert.Equal(t, []time.Duration{sonar.PageDelay, sonar.PageDelay}, rec.waits)
	assert.Equal(t, url.Values{"componentKeys": {"demo"}}, params, "caller params are untouched")
	assert.Equal(t, "demo", srv.calls[2].Get("componentKeys"))
	assert.Equal(t, "3", srv.calls[2].Get("p"))
}

func TestPaginator_NestedTotal(t *testing.T) {
	srv := &pagedServer{total: 7, itemsKey: "hotspots", nested: true}
	p := sonar.NewPaginator(srv, sonar.WithPageSize(3), sonar.WithPageSleep((&sleepRecorder{}).sleep))

	items, err := p.FetchAll(context.Background(), "api/hotspots/search", nil)
	require.NoError(t, err)
	assert.Len(t, items, 7)
	assert.Len(t, srv.calls, 3)
}

func TestPaginator_StopsOnEmptyPage(t *testing.T) {
	srv := &pagedServer{total: 1000, itemsKey: "issues", stopAfter: 1}
	p := sonar.NewPaginator(srv, sonar.WithPageSize(100), sonar.WithPageSleep((&sleepRecorder{}).sleep))

	items, err := p.FetchAll(context.Background(), "api/issues/search", nil)
	require.NoError(t, err)
	assert.Len(t, items, 100)
	assert.Len(t, srv.calls, 2)
}

func TestPaginator_PageCap(t *testing.T) {
	srv := &pagedServer{total: 1000, itemsKey: "components", nested: true}
	p := sonar.NewPaginator(srv,
		sonar.WithPageSize(10),
		sonar.WithMaxPages(4),
		sonar.WithPageSleep((&sleepRecorder{}).sleep),
	)

	items, err := p.FetchAll(context.Background(), "api/components/tree", nil)
	require.NoError(t, err)
	assert.Len(t, items, 40)
	assert.Len(t, srv.calls, 4)
}

func TestPaginator_Idempotent(t *testing.T) {
	srv := &pagedServer{total: 25, itemsKey: "issues"}
	p := sonar.NewPaginator(srv, sonar.WithPageSize(10), sonar.WithPageSleep((&sleepRecorder{}).sleep))

	first, err := p.FetchAll(context.Background(), "api/issues/search", nil)
	require.NoError(t, err)
	second, err := p.FetchAll(context.Background(), "api/issues/search", nil)
	require.NoError(t, err)
	assert.Equal(t, keysOf(t, first), keysOf(t, second))
}

func TestPaginator_CancelledBetweenPages(t *testing.T) {
	srv := &pagedServer{total: 50, itemsKey: "issues"}
	p := sonar.NewPaginator(srv, sonar.WithPageSize(10), sonar.WithPageDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.FetchAll(ctx, "api/issues/search", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, srv.calls, 1)
}
