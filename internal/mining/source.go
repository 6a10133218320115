package mining

import (
	"context"
	"io"
	"strings"

	"github.com/rohankatakam/changeminer/internal/models"
)

// CommitSource yields commits one at a time in processing order.
// Next returns io.EOF after the last commit.
type CommitSource interface {
	Next(ctx context.Context) (*models.Commit, error)
	Close() error
}

// SliceSource serves commits from memory
type SliceSource struct {
	commits []*models.Commit
	pos     int
}

// NewSliceSource creates a source over commits
func NewSliceSource(commits ...*models.Commit) *SliceSource {
	return &SliceSource{commits: commits}
}

// Next implements CommitSource
func (s *SliceSource) Next(ctx context.Context) (*models.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.commits) {
		return nil, io.EOF
	}
	c := s.commits[s.pos]
	s.pos++
	return c, nil
}

// Close implements CommitSource
func (s *SliceSource) Close() error { return nil }

// UntilSource serves commits from src up to and including the commit whose
// hash starts with stop, then reports io.EOF. The wrapped source stays open,
// so a second run can continue from the commit after stop.
type UntilSource struct {
	src     CommitSource
	stop    string
	reached bool
}

// NewUntilSource wraps src
func NewUntilSource(src CommitSource, stop string) *UntilSource {
	return &UntilSource{src: src, stop: stop}
}

// Reached reports whether the stop commit was served
func (u *UntilSource) Reached() bool { return u.reached }

// Next implements CommitSource
func (u *UntilSource) Next(ctx context.Context) (*models.Commit, error) {
	if u.reached {
		return nil, io.EOF
	}
	c, err := u.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	if u.stop != "" && strings.HasPrefix(c.Hash, u.stop) {
		u.reached = true
	}
	return c, nil
}

// Close is a no-op; the caller owns the wrapped source
func (u *UntilSource) Close() error { return nil }
