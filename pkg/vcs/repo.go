package vcs

import (
	"context"
	"errors"
)

var (
	ErrRepoNotFound = errors.New("repository not found")
	ErrInvalidRef   = errors.New("invalid ref")
)

// Checkout is a local working tree of one exact repository state. The
// directory is owned by the scan call that requested it, which must remove
// it after every backend has finished reading it.
type Checkout struct {
	Path      string
	Ref       string
	CommitSHA string
}

// SourceProvider resolves repository refs and materializes working trees.
type SourceProvider interface {
	// Resolve returns the effective ref (the default branch when ref is
	// empty) and the commit SHA it points at.
	Resolve(ctx context.Context, owner, name, ref string) (resolvedRef, commitSHA string, err error)

	// Fetch downloads the tree at the given ref into a fresh temp directory.
	Fetch(ctx context.Context, owner, name, ref string) (*Checkout, error)
}
