package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Key identifies one cached remote read. Two reads may share cached data only
// when every field matches.
type Key struct {
	Resource string
	// Kind separates list, count and single-item reads of one resource.
	Kind   string
	ID     string
	Sort   string
	Search string
	Page   int
	Scope  string
}

func (k Key) String() string {
	parts := []string{
		url.QueryEscape(k.Resource),
		url.QueryEscape(k.Kind),
		url.QueryEscape(k.ID),
		url.QueryEscape(k.Sort),
		url.QueryEscape(k.Search),
		strconv.Itoa(k.Page),
		url.QueryEscape(k.Scope),
	}
	return strings.Join(parts, "|")
}
