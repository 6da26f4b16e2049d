package batches

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Service fronts the repository with the item cache. Every other call passes
// straight through; mutations drop the cached items of the batch they touch.
type Service struct {
	repo   Repository
	cache  ItemCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService wires the batch service. A nil cache falls back to memory.
func NewService(repo Repository, cache ItemCache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryItemCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns every batch.
func (s *Service) List(ctx context.Context) ([]Batch, error) {
	return s.repo.List(ctx)
}

// ListOpen returns batches without an exit.
func (s *Service) ListOpen(ctx context.Context) ([]Batch, error) {
	return s.repo.ListOpen(ctx)
}

// Get loads one batch with its items.
func (s *Service) Get(ctx context.Context, id int64) (Batch, error) {
	return s.repo.Get(ctx, id)
}

// Items returns the item list of a batch, fetching it from the API at most once
// per cache lifetime. Concurrent callers for the same id share one request.
// The shared request runs detached from any single caller, so a caller that
// gives up only stops waiting; the API client timeout still bounds the fetch.
func (s *Service) Items(ctx context.Context, id int64) ([]Item, error) {
	if items, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("batch items cache read failed", slog.Int64("batch_id", id), slog.Any("error", err))
	} else if ok {
		return items, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	results := s.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		items, err := s.repo.Items(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(fetchCtx, id, items); err != nil {
			s.logger.Warn("batch items cache write failed", slog.Int64("batch_id", id), slog.Any("error", err))
		}
		return items, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Item), nil
	}
}

// Create stores a new batch.
func (s *Service) Create(ctx context.Context, in Input) (Batch, error) {
	return s.repo.Create(ctx, in)
}

// Update replaces a batch and its full item list.
func (s *Service) Update(ctx context.Context, id int64, in Input) error {
	if err := s.repo.Update(ctx, id, in); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Delete removes a batch.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Exit records the exit of an open batch.
func (s *Service) Exit(ctx context.Context, id int64, in ExitInput) error {
	return s.repo.Exit(ctx, id, in.Request())
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("batch items cache invalidate failed", slog.Int64("batch_id", id), slog.Any("error", err))
	}
}
