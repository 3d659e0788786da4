// Package include decides which related records to eager-load for a response.
//
// A call site declares a whitelist of relation names it is willing to expose.
// Clients ask for relations through the comma separated "include" query
// parameter; only names present in both lists are attached.
package include

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRelation is returned by a Target asked for a relation it cannot attach.
var ErrUnknownRelation = errors.New("unknown relation")

// Set is a parsed include list.
type Set map[string]struct{}

// Parse splits a raw include value such as "user, event" into a Set.
// Surrounding whitespace is trimmed and empty names are dropped.
func Parse(raw string) Set {
	set := make(Set)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Select returns the whitelist entries that were requested, in whitelist order.
func Select(whitelist []string, requested Set) []string {
	if len(requested) == 0 {
		return nil
	}
	var out []string
	for _, name := range whitelist {
		if requested.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Target is something relations can be attached to: either a single loaded
// record or a query that has not run yet. With must be idempotent.
type Target interface {
	With(ctx context.Context, relation string) error
}

// Load attaches every whitelisted relation that was requested and returns target.
func Load[T Target](ctx context.Context, target T, whitelist []string, requested Set) (T, error) {
	for _, name := range Select(whitelist, requested) {
		if err := target.With(ctx, name); err != nil {
			return target, fmt.Errorf("include %s: %w", name, err)
		}
	}
	return target, nil
}

// Unknown wraps ErrUnknownRelation with the offending name.
func Unknown(relation string) error {
	return fmt.Errorf("%w: %q", ErrUnknownRelation, relation)
}
