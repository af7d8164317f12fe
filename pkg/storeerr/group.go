package storeerr

import "strings"

// Group aggregates the per-object failures from one saver or loader
// context. Individual successes in the same context are unaffected by a
// sibling's failure; Group is how the caller learns about all of them at
// once without collapsing them into a single opaque string.
type Group struct {
	errs []error
}

// Add appends a per-object failure to the group. Nil errors are ignored.
func (g *Group) Add(err error) {
	if err == nil {
		return
	}
	g.errs = append(g.errs, err)
}

// Len reports how many failures have been collected.
func (g *Group) Len() int {
	return len(g.errs)
}

// Errors returns the individually inspectable constituent errors, in the
// order they were added.
func (g *Group) Errors() []error {
	return g.errs
}

// ErrOrNil returns the group as an error if it has any members, or nil if
// it is empty. Callers should prefer this over checking Len() themselves.
func (g *Group) ErrOrNil() error {
	if len(g.errs) == 0 {
		return nil
	}
	return g
}

// Unwrap exposes every constituent error so errors.Is/errors.As walk into
// the group rather than stopping at its own Error() string.
func (g *Group) Unwrap() []error {
	return g.errs
}

// Error implements the error interface by joining each constituent's
// message with "; ".
func (g *Group) Error() string {
	parts := make([]string, len(g.errs))
	for i, e := range g.errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
