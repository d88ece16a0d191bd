// Package search parses the token-based query grammar consumed by external
// clients and runs scope-limited substring searches over the article store.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/galnetfeed/galnet-archive/app/calendar"
	"github.com/galnetfeed/galnet-archive/app/database"
)

// DefaultLimit caps search results when no limit option is given, and is the
// fallback for malformed limit values.
const DefaultLimit = 5

// Scope selects which fields a search matches against.
type Scope int

const (
	ScopeTitle Scope = iota
	ScopeContent
	ScopeAll
)

// ValidationError reports disallowed query input. The whole query is
// rejected before storage is touched.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Input, e.Reason)
}

// Filter is the structured form of one parsed option string. A Limit of zero
// means unbounded. Words are case-folded at parse time.
type Filter struct {
	Words  []string
	Scope  Scope
	Order  database.Order
	Limit  int
	After  *time.Time
	Before *time.Time
}

// ParseOptions parses a whitespace-separated option string. Tokens prefixed
// with "--" are options, everything else is a search word. Unrecognized
// options are ignored, matching the legacy grammar's tolerance.
func ParseOptions(input string) (*Filter, error) {
	// Defense in depth for the store; the legacy query path was built by
	// string substitution and clients may still try to smuggle statements.
	if strings.Contains(input, ";") {
		return nil, &ValidationError{Input: input, Reason: "';' is not allowed"}
	}

	filter := &Filter{
		Scope: ScopeTitle,
		Order: database.OrderDesc,
		Limit: DefaultLimit,
	}

	for _, token := range strings.Fields(input) {
		if !strings.HasPrefix(token, "--") {
			filter.Words = append(filter.Words, fold(token))
			continue
		}

		option := strings.TrimPrefix(token, "--")
		switch {
		case option == "title":
			filter.Scope = ScopeTitle
		case option == "content":
			filter.Scope = ScopeContent
		case option == "searchall" || option == "all":
			filter.Scope = ScopeAll
		case option == "searchreverse":
			filter.Order = database.OrderAsc
		case option == "limitall" || option == "listall":
			filter.Limit = 0
		case strings.HasPrefix(option, "limit="):
			n, err := strconv.Atoi(strings.TrimPrefix(option, "limit="))
			if err != nil || n < 1 {
				n = DefaultLimit
			}
			filter.Limit = n
		case strings.HasPrefix(option, "before="):
			t, err := calendar.ParseOptionDate(strings.TrimPrefix(option, "before="))
			if err != nil {
				return nil, err
			}
			filter.Before = &t
		case strings.HasPrefix(option, "after="):
			t, err := calendar.ParseOptionDate(strings.TrimPrefix(option, "after="))
			if err != nil {
				return nil, err
			}
			filter.After = &t
		}
	}

	return filter, nil
}
