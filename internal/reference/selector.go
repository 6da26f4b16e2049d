package reference

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Selector holds one reference list, the current selection and the inline
// "add new" capability. The same type backs every company, mediator, material
// type and destination picker.
type Selector[T any] struct {
	fetch    func(context.Context) ([]T, error)
	create   func(context.Context, string) (T, error)
	idOf     func(T) int64
	onChange func(int64)

	options  []T
	selected int64
}

// NewSelector wires a selector from its fetch and create functions. onChange
// may be nil.
func NewSelector[T any](fetch func(context.Context) ([]T, error), create func(context.Context, string) (T, error), idOf func(T) int64, onChange func(int64)) *Selector[T] {
	return &Selector[T]{fetch: fetch, create: create, idOf: idOf, onChange: onChange}
}

// ForKind builds an Entity selector over one repository collection.
func ForKind(repo Repository, kind Kind, onChange func(int64)) *Selector[Entity] {
	return NewSelector(
		func(ctx context.Context) ([]Entity, error) { return repo.List(ctx, kind) },
		func(ctx context.Context, name string) (Entity, error) { return repo.Create(ctx, kind, name) },
		EntityID,
		onChange,
	)
}

// Load replaces the options with a fresh fetch.
func (s *Selector[T]) Load(ctx context.Context) error {
	options, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.options = options
	return nil
}

// Options returns the loaded list in API order.
func (s *Selector[T]) Options() []T {
	return s.options
}

// Selected returns the selected id, 0 when none.
func (s *Selector[T]) Selected() int64 {
	return s.selected
}

// Select changes the selection and notifies the callback on change.
func (s *Selector[T]) Select(id int64) {
	if id == s.selected {
		return
	}
	s.selected = id
	if s.onChange != nil {
		s.onChange(id)
	}
}

// Find returns the option with the given id.
func (s *Selector[T]) Find(id int64) (T, bool) {
	for _, opt := range s.options {
		if s.idOf(opt) == id {
			return opt, true
		}
	}
	var zero T
	return zero, false
}

// AddNew creates an entry, appends it to the options and selects it. The
// selection only changes once the create call has returned an id.
func (s *Selector[T]) AddNew(ctx context.Context, name string) (T, error) {
	var zero T
	name = strings.TrimSpace(name)
	if name == "" {
		return zero, ErrNameRequired
	}
	created, err := s.create(ctx, name)
	if err != nil {
		return zero, err
	}
	s.options = append(s.options, created)
	s.Select(s.idOf(created))
	return created, nil
}

// Loader is anything that can populate itself from the API.
type Loader interface {
	Load(ctx context.Context) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) error { return f(ctx) }

// LoadAll runs every loader concurrently and waits for all of them. The first
// failure cancels the rest and is returned as the single load error.
func LoadAll(ctx context.Context, loaders ...Loader) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loaders {
		g.Go(func() error {
			return l.Load(gctx)
		})
	}
	return g.Wait()
}
