package fdw

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func page(url string, headers map[string]string, body string) *PageResponse {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	return &PageResponse{URL: url, Status: 200, Header: h, Body: []byte(body)}
}

func TestCursorFirstCallFetchesFirstPage(t *testing.T) {
	for _, mode := range []string{PaginateLink, PaginateHeader, PaginateBody, PaginatePage, PaginateNone} {
		c := NewCursor(Pagination{Mode: mode, PageParam: "page"}, url.Values{"state": {"open"}})
		d := c.Next(nil)
		if d.Action != FetchFirstPage {
			t.Errorf("%s: expected fetch_first_page, got %s", mode, d.Action)
		}
		if d.Params.Get("state") != "open" {
			t.Errorf("%s: expected static params on first page, got %v", mode, d.Params)
		}
	}
}

func TestCursorLinkHeader(t *testing.T) {
	c := NewCursor(Pagination{Mode: PaginateLink}, nil)
	c.Next(nil)

	prev := page("https://api.example.com/events?per_page=2", map[string]string{
		"Link": `<https://api.example.com/events?page=2>; rel="next", <https://api.example.com/events?page=9>; rel="last"`,
	}, `[]`)
	d := c.Next(prev)
	if d.Action != FetchNextPage {
		t.Fatalf("expected fetch_next_page, got %s", d.Action)
	}
	if d.URL != "https://api.example.com/events?page=2" {
		t.Errorf("expected next link URL, got %q", d.URL)
	}

	last := page(d.URL, map[string]string{
		"Link": `<https://api.example.com/events?page=1>; rel="first", <https://api.example.com/events?page=1>; rel="prev"`,
	}, `[]`)
	if d := c.Next(last); d.Action != Exhausted {
		t.Errorf("expected exhausted without rel=next, got %s", d.Action)
	}
}

func TestCursorLinkHeaderRelative(t *testing.T) {
	c := NewCursor(Pagination{Mode: PaginateLink}, nil)
	c.Next(nil)

	prev := page("https://api.example.com/v1/events", map[string]string{
		"Link": `</v1/events?after=42>; rel="next prefetch"`,
	}, `[]`)
	d := c.Next(prev)
	if d.URL != "https://api.example.com/v1/events?after=42" {
		t.Errorf("expected resolved relative link, got %q", d.URL)
	}
}

func TestCursorLinkHeaderCommaInTarget(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{
			"comma in query",
			`<https://api.example.com/items?fields=id,name&page=2>; rel="next"`,
			"https://api.example.com/items?fields=id,name&page=2",
		},
		{
			"next after comma target",
			`<https://api.example.com/items?fields=a,b&page=1>; rel="prev", <https://api.example.com/items?fields=a,b&page=3>; rel="next"`,
			"https://api.example.com/items?fields=a,b&page=3",
		},
		{
			"comma in quoted param",
			`<https://api.example.com/items?page=1>; title="first, oldest"; rel="first", <https://api.example.com/items?page=2>; rel="next"`,
			"https://api.example.com/items?page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(Pagination{Mode: PaginateLink}, nil)
			c.Next(nil)

			d := c.Next(page("https://api.example.com/items", map[string]string{"Link": tt.link}, `[]`))
			if d.Action != FetchNextPage {
				t.Fatalf("expected fetch_next_page, got %s", d.Action)
			}
			if d.URL != tt.want {
				t.Errorf("expected %q, got %q", tt.want, d.URL)
			}
		})
	}
}

func TestCursorMalformedSignalIsExhaustion(t *testing.T) {
	tests := []struct {
		name string
		cfg  Pagination
		prev *PageResponse
	}{
		{"link without brackets", Pagination{Mode: PaginateLink}, page("https://a.test/x", map[string]string{"Link": `https://a.test/x?page=2; rel="next"`}, `[]`)},
		{"link bad scheme", Pagination{Mode: PaginateLink}, page("https://a.test/x", map[string]string{"Link": `<ftp://a.test/x>; rel="next"`}, `[]`)},
		{"link missing", Pagination{Mode: PaginateLink}, page("https://a.test/x", nil, `[]`)},
		{"header empty", Pagination{Mode: PaginateHeader, CursorHeader: "X-Next-Cursor"}, page("https://a.test/x", map[string]string{"X-Next-Cursor": "  "}, `[]`)},
		{"body not object", Pagination{Mode: PaginateBody, CursorPath: "next"}, page("https://a.test/x", nil, `[1,2]`)},
		{"body token object", Pagination{Mode: PaginateBody, CursorPath: "next"}, page("https://a.test/x", nil, `{"next":{"a":1}}`)},
		{"body token null", Pagination{Mode: PaginateBody, CursorPath: "next"}, page("https://a.test/x", nil, `{"next":null}`)},
		{"page empty", Pagination{Mode: PaginatePage, PageParam: "page"}, page("https://a.test/x", nil, `[]`)},
		{"page garbage", Pagination{Mode: PaginatePage, PageParam: "page"}, page("https://a.test/x", nil, `<html>`)},
		{"none", Pagination{Mode: PaginateNone}, page("https://a.test/x", nil, `[{"a":1}]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.cfg, nil)
			c.Next(nil)
			if d := c.Next(tt.prev); d.Action != Exhausted {
				t.Errorf("expected exhausted, got %s", d.Action)
			}
		})
	}
}

func TestCursorHeaderToken(t *testing.T) {
	cfg := Pagination{Mode: PaginateHeader, CursorHeader: "X-Next-Cursor", CursorParam: "cursor", PageSize: 50, PageSizeParam: "limit"}
	c := NewCursor(cfg, nil)

	first := c.Next(nil)
	if first.Params.Get("limit") != "50" {
		t.Errorf("expected page size on first page, got %v", first.Params)
	}

	d := c.Next(page("https://a.test/x", map[string]string{"x-next-cursor": "abc"}, `[]`))
	if d.Action != FetchNextPage || d.Params.Get("cursor") != "abc" || d.Params.Get("limit") != "50" {
		t.Errorf("expected next page with cursor=abc&limit=50, got %s %v", d.Action, d.Params)
	}
}

func TestCursorBodyToken(t *testing.T) {
	c := NewCursor(Pagination{Mode: PaginateBody, CursorPath: "meta.next", CursorParam: "after"}, nil)
	c.Next(nil)

	d := c.Next(page("https://a.test/x", nil, `{"data":[],"meta":{"next":"tok-2"}}`))
	if d.Params.Get("after") != "tok-2" {
		t.Errorf("expected after=tok-2, got %v", d.Params)
	}

	d = c.Next(page("https://a.test/x", nil, `{"data":[],"meta":{"next":17}}`))
	if d.Params.Get("after") != "17" {
		t.Errorf("expected numeric token, got %v", d.Params)
	}
}

func TestCursorPageCounter(t *testing.T) {
	c := NewCursor(Pagination{Mode: PaginatePage, PageParam: "page", PageSizeParam: "per_page", PageSize: 2}, nil)

	if d := c.Next(nil); d.Params.Get("page") != "1" || d.Params.Get("per_page") != "2" {
		t.Fatalf("expected page=1&per_page=2, got %v", d.Params)
	}
	d := c.Next(page("https://a.test/x", nil, `[{"a":1},{"a":2}]`))
	if d.Action != FetchNextPage || d.Params.Get("page") != "2" {
		t.Fatalf("expected page 2, got %s %v", d.Action, d.Params)
	}
	if d := c.Next(page("https://a.test/x", nil, `[{"a":3}]`)); d.Action != Exhausted {
		t.Errorf("expected short page to exhaust, got %s", d.Action)
	}
}

func TestCursorNeverRestartsWithoutReset(t *testing.T) {
	c := NewCursor(Pagination{Mode: PaginateHeader, CursorHeader: "X-Next-Cursor", CursorParam: "cursor"}, nil)
	c.Next(nil)

	sequence := []*PageResponse{
		page("https://a.test/x", map[string]string{"X-Next-Cursor": "2"}, `[]`),
		nil,
		page("https://a.test/x", nil, `[]`),
		nil,
	}
	for i, prev := range sequence {
		if d := c.Next(prev); d.Action == FetchFirstPage {
			t.Fatalf("call %d: cursor restarted without reset", i)
		}
	}

	c.Reset()
	if d := c.Next(nil); d.Action != FetchFirstPage {
		t.Errorf("expected fetch_first_page after reset, got %s", d.Action)
	}
}

func TestPaginationFromOptions(t *testing.T) {
	p, err := PaginationFromOptions(Options{"pagination": "Header", "page_size": "25"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != PaginateHeader || p.PageSize != 25 || p.CursorHeader != "X-Next-Cursor" {
		t.Errorf("unexpected pagination %+v", p)
	}

	_, err = PaginationFromOptions(Options{"pagination": "offset"})
	var oe *OptionError
	if !errors.As(err, &oe) || oe.Option != "pagination" {
		t.Errorf("expected pagination option error, got %v", err)
	}

	_, err = PaginationFromOptions(Options{"page_size": "ten"})
	if !errors.As(err, &oe) || oe.Option != "page_size" {
		t.Errorf("expected page_size option error, got %v", err)
	}
}
