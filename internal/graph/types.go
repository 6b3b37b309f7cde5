package graph

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a title does not resolve to a page.
	ErrNotFound = errors.New("page not found")

	// ErrTransientFetch marks a malformed or interrupted fetch that is safe to retry.
	ErrTransientFetch = errors.New("transient fetch failure")
)

// PageInfo is what a Loader reports for a resolved title.
type PageInfo struct {
	// Title is the canonical title; empty means the requested one.
	Title   string
	Summary string
}

// Loader is the remote side of a Source. Implementations key everything by
// title and must return errors wrapping ErrTransientFetch for throttled or
// malformed responses.
type Loader interface {
	Exists(ctx context.Context, title string) (bool, error)

	// Lookup follows redirects and returns the page's canonical title and
	// plain-text introduction, or ErrNotFound.
	Lookup(ctx context.Context, title string) (PageInfo, error)

	// Links returns the titles a page links to, in source order.
	Links(ctx context.Context, title string) ([]string, error)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}
