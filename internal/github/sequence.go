package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v81/github"
)

// DefaultPageSize is the page size requested from list endpoints.
const DefaultPageSize = 100

// PageFunc fetches one page of a paginated listing.
type PageFunc[T any] func(ctx context.Context, opts github.ListOptions) ([]T, *github.Response, error)

// Sequence is a finite, lazily fetched listing. Every traversal starts again
// from the first page, so a Sequence can be walked any number of times.
type Sequence[T any] struct {
	fetch   PageFunc[T]
	perPage int
}

func NewSequence[T any](fetch PageFunc[T]) *Sequence[T] {
	return &Sequence[T]{fetch: fetch, perPage: DefaultPageSize}
}

// errStop ends a traversal early without reporting an error.
var errStop = errors.New("stop")

// Stop can be returned from an Each callback to end the traversal.
func Stop() error { return errStop }

// Each calls fn for every element, fetching pages on demand.
func (s *Sequence[T]) Each(ctx context.Context, fn func(T) error) error {
	if s == nil || s.fetch == nil {
		return fmt.Errorf("sequence: nil page function")
	}
	opts := github.ListOptions{Page: 1, PerPage: s.perPage}
	for {
		items, resp, err := s.fetch(ctx, opts)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// Collect walks the whole sequence into a slice.
func (s *Sequence[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	err := s.Each(ctx, func(item T) error {
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
