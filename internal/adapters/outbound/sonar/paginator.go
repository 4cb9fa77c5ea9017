package sonar

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Getter is the part of Client the paginator drives.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Endpoint describes where a paginated endpoint keeps its items and total.
// Total fields are dotted paths tried in order.
type Endpoint struct {
	Path        string
	ItemsField  string
	TotalFields []string
}

// EndpointFor infers the response layout from the endpoint path.
func EndpointFor(path string) Endpoint {
	switch {
	case strings.Contains(path, "issues/search"):
		return Endpoint{Path: path, ItemsField: "issues", TotalFields: []string{"total", "paging.total"}}
	case strings.Contains(path, "hotspots/search"):
		return Endpoint{Path: path, ItemsField: "hotspots", TotalFields: []string{"paging.total"}}
	default:
		return Endpoint{Path: path, ItemsField: "components", TotalFields: []string{"paging.total"}}
	}
}

// PageDelay is the pause inserted before every page after the first.
const PageDelay = 500 * time.Millisecond

// Paginator accumulates the items of a multi-page endpoint.
type Paginator struct {
	client    Getter
	pageSize  int
	maxPages  int
	pageDelay time.Duration
	sleep     SleepFunc
	logger    zerolog.Logger
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPageSize sets the ps parameter.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) { p.pageSize = n }
}

// WithMaxPages caps the number of pages fetched; 0 means no cap.
func WithMaxPages(n int) PaginatorOption {
	return func(p *Paginator) { p.maxPages = n }
}

// WithPageDelay overrides PageDelay.
func WithPageDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) { p.pageDelay = d }
}

// WithPageSleep replaces the wait between pages.
func WithPageSleep(fn SleepFunc) PaginatorOption {
	return func(p *Paginator) { p.sleep = fn }
}

// WithPaginatorLogger sets the progress logger.
func WithPaginatorLogger(l zerolog.Logger) PaginatorOption {
	return func(p *Paginator) { p.logger = l }
}

// NewPaginator creates a Paginator over client with a page size of 500, the
// default page delay and no page cap.
func NewPaginator(client Getter, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		client:    client,
		pageSize:  500,
		pageDelay: PageDelay,
		sleep:     Sleep,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchAll walks the endpoint page by page. It stops once the accumulated
// count reaches the reported total, on an empty page, or at the page cap.
// params is never modified.
func (p *Paginator) FetchAll(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	layout := EndpointFor(endpoint)

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("ps", strconv.Itoa(p.pageSize))

	var (
		all   []json.RawMessage
		total = -1
	)
	for page := 1; ; page++ {
		if page > 1 {
			if err := p.sleep(ctx, p.pageDelay); err != nil {
				return nil, err
			}
		}
		query.Set("p", strconv.Itoa(page))
		p.logger.Debug().Str("endpoint", endpoint).Int("page", page).Msg("fetching page")

		body, err := p.client.Get(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}
		items, pageTotal, err := decodePage(body, layout)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding page %d of %s", page, endpoint)
		}
		all = append(all, items...)
		if total < 0 {
			total = pageTotal
			p.logger.Debug().Str("endpoint", endpoint).Int("total", total).Msg("reported total")
		}

		if p.maxPages > 0 && page >= p.maxPages {
			p.logger.Info().Str("endpoint", endpoint).Int("max_pages", p.maxPages).Msg("page limit reached, stopping pagination")
			break
		}
		if len(all) >= total || len(items) == 0 {
			break
		}
	}

	p.logger.Info().Str("endpoint", endpoint).Int("items", len(all)).Msg("pagination complete")
	return all, nil
}

// decodePage returns the items of one page and the reported total. A
// missing total reads as 0, which ends pagination after the current page.
func decodePage(body []byte, layout Endpoint) ([]json.RawMessage, int, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, err
	}

	var items []json.RawMessage
	if raw, ok := doc[layout.ItemsField]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, errors.Wrapf(err, "field %q", layout.ItemsField)
		}
	}

	for _, field := range layout.TotalFields {
		if n, ok := lookupInt(doc, field); ok {
			return items, n, nil
		}
	}
	return items, 0, nil
}

func lookupInt(doc map[string]json.RawMessage, path string) (int, bool) {
	head, rest, nested := strings.Cut(path, ".")
	raw, ok := doc[head]
	if !ok {
		return 0, false
	}
	if nested {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return 0, false
		}
		return lookupInt(inner, rest)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}
