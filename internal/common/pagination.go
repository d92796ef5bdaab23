package common

import (
	"fmt"
	"net/http"
	"strconv"
)

// PageSize is the fixed number of rows returned per list page.
const PageSize = 10

// PageMeta holds pagination metadata for list responses.
type PageMeta struct {
	Page       int   `json:"page"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// PageLinks carries navigation URLs. A boundary page yields a null link.
type PageLinks struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// ParsePage extracts the requested page number from query values,
// falling back to 1 when the parameter is absent or not a positive integer.
func ParsePage(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// Offset returns the row offset for the given 1-based page.
func Offset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}

// TotalPages computes ceil(totalItems / PageSize). An empty result set has zero pages.
func TotalPages(totalItems int64) int {
	if totalItems <= 0 {
		return 0
	}
	return int((totalItems + PageSize - 1) / PageSize)
}

// NextPage returns the following page number, or nil when page is the last one.
func NextPage(page, totalPages int) *int {
	if page < totalPages {
		n := page + 1
		return &n
	}
	return nil
}

// PrevPage returns the preceding page number, or nil when page is the first one.
func PrevPage(page int) *int {
	if page > 1 {
		p := page - 1
		return &p
	}
	return nil
}

// NewPageMeta assembles pagination metadata for the given request page and
// the total number of matching rows.
func NewPageMeta(page int, totalItems int64) PageMeta {
	return PageMeta{
		Page:       page,
		TotalItems: totalItems,
		TotalPages: TotalPages(totalItems),
	}
}

// BuildPageLinks renders next/previous URLs by substituting the page number
// into the request URL with its query string stripped.
func BuildPageLinks(r *http.Request, page, totalPages int) PageLinks {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	base := fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
	return PageLinks{
		Next:     pageLink(base, NextPage(page, totalPages)),
		Previous: pageLink(base, PrevPage(page)),
	}
}

func pageLink(base string, page *int) *string {
	if page == nil {
		return nil
	}
	link := fmt.Sprintf("%s?page=%d", base, *page)
	return &link
}
