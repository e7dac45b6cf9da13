// Package routes maps request path prefixes onto target service identities.
// The table is built once at startup and read-only afterwards, so it can be
// shared across concurrently handled requests without locking.
package routes

import "strings"

// Route is one static routing entry. Target is the service identity the
// internal token is minted for, not a URL.
type Route struct {
	Prefix      string
	Target      string
	StripPrefix bool
}

// Table is an immutable, ordered route table. Resolution walks entries in
// configuration order and returns the first prefix match, so the result is
// deterministic for a fixed table and path.
type Table struct {
	routes []Route
}

func NewTable(entries []Route) *Table {
	routes := make([]Route, len(entries))
	copy(routes, entries)

	return &Table{routes: routes}
}

// Resolve returns the first route whose prefix matches path. A prefix
// matches on the exact path or at a "/" boundary, so "/api/risk" never
// captures "/api/riskier".
func (t *Table) Resolve(path string) (Route, bool) {
	for _, route := range t.routes {
		if path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route, true
		}
	}

	return Route{}, false
}

// StrippedPath removes the route prefix from path when the route asks for
// it. An empty remainder becomes "/".
func (r Route) StrippedPath(path string) string {
	if !r.StripPrefix {
		return path
	}

	stripped := strings.TrimPrefix(path, r.Prefix)
	if stripped == "" {
		return "/"
	}

	return stripped
}
