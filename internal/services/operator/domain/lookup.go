package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// LookupStatus classifies how many active contracts a lookup found.
type LookupStatus int

const (
	NoneFound LookupStatus = iota
	ExactlyOne
	MultipleFound
)

// String implements fmt.Stringer.
func (s LookupStatus) String() string {
	switch s {
	case NoneFound:
		return "none_found"
	case ExactlyOne:
		return "exactly_one"
	case MultipleFound:
		return "multiple_found"
	default:
		return "unknown"
	}
}

// Lookup is the result of an active-set query that expects a single owner.
type Lookup struct {
	TemplateID string
	Filter     map[string]any
	Matches    []ledger.Contract
}

// Status reports the cardinality of the matches.
func (l Lookup) Status() LookupStatus {
	switch len(l.Matches) {
	case 0:
		return NoneFound
	case 1:
		return ExactlyOne
	default:
		return MultipleFound
	}
}

// One returns the single match, or a *LookupError for none or several.
func (l Lookup) One() (ledger.Contract, error) {
	status := l.Status()
	if status == ExactlyOne {
		return l.Matches[0], nil
	}
	ids := make([]string, 0, len(l.Matches))
	for _, match := range l.Matches {
		ids = append(ids, match.ContractID)
	}
	return ledger.Contract{}, &LookupError{
		TemplateID:  l.TemplateID,
		Filter:      l.Filter,
		Status:      status,
		ContractIDs: ids,
	}
}

// LookupError reports a lookup that did not find exactly one contract.
type LookupError struct {
	TemplateID  string
	Filter      map[string]any
	Status      LookupStatus
	ContractIDs []string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e == nil {
		return "lookup error"
	}
	found := "none"
	if e.Status == MultipleFound {
		found = fmt.Sprintf("%d (%s)", len(e.ContractIDs), strings.Join(e.ContractIDs, ", "))
	}
	return fmt.Sprintf("expected one active %s matching %s, found %s", e.TemplateID, formatFilter(e.Filter), found)
}

// FindActive queries the active contracts of templateID matching filter.
func FindActive(ctx context.Context, gateway Gateway, templateID string, filter map[string]any) (Lookup, error) {
	if gateway == nil {
		return Lookup{}, fmt.Errorf("ledger gateway is required")
	}
	matches, err := gateway.Query(ctx, templateID, filter)
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{TemplateID: templateID, Filter: filter, Matches: matches}, nil
}

func formatFilter(filter map[string]any) string {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, filter[key]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
