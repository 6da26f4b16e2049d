package batches

import (
	"context"
	"fmt"

	"github.com/dyetrack/dyetrack/internal/platform/restapi"
)

// Repository is the batch surface of the REST API.
type Repository interface {
	List(ctx context.Context) ([]Batch, error)
	ListOpen(ctx context.Context) ([]Batch, error)
	Get(ctx context.Context, id int64) (Batch, error)
	Items(ctx context.Context, id int64) ([]Item, error)
	Create(ctx context.Context, in Input) (Batch, error)
	Update(ctx context.Context, id int64, in Input) error
	Delete(ctx context.Context, id int64) error
	Exit(ctx context.Context, id int64, req ExitRequest) error
}

type apiRepository struct {
	client *restapi.Client
}

// NewRepository returns a Repository backed by the REST API.
func NewRepository(client *restapi.Client) Repository {
	return &apiRepository{client: client}
}

func batchPath(id int64) string {
	return fmt.Sprintf("/batch/%d", id)
}

func (r *apiRepository) List(ctx context.Context) ([]Batch, error) {
	var out []Batch
	if err := r.client.Get(ctx, "/batches", &out); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if out == nil {
		out = []Batch{}
	}
	return out, nil
}

func (r *apiRepository) ListOpen(ctx context.Context) ([]Batch, error) {
	var out []Batch
	if err := r.client.Get(ctx, "/batches/open", &out); err != nil {
		return nil, fmt.Errorf("list open batches: %w", err)
	}
	if out == nil {
		out = []Batch{}
	}
	return out, nil
}

func (r *apiRepository) Get(ctx context.Context, id int64) (Batch, error) {
	var out Batch
	if err := r.client.Get(ctx, batchPath(id), &out); err != nil {
		return Batch{}, fmt.Errorf("get batch %d: %w", id, err)
	}
	return out, nil
}

func (r *apiRepository) Items(ctx context.Context, id int64) ([]Item, error) {
	var out []Item
	if err := r.client.Get(ctx, batchPath(id)+"/items", &out); err != nil {
		return nil, fmt.Errorf("batch %d items: %w", id, err)
	}
	if out == nil {
		out = []Item{}
	}
	return out, nil
}

func (r *apiRepository) Create(ctx context.Context, in Input) (Batch, error) {
	var out Batch
	if err := r.client.Post(ctx, "/batch", in, &out); err != nil {
		return Batch{}, fmt.Errorf("create batch: %w", err)
	}
	return out, nil
}

func (r *apiRepository) Update(ctx context.Context, id int64, in Input) error {
	if err := r.client.Put(ctx, batchPath(id), in, nil); err != nil {
		return fmt.Errorf("update batch %d: %w", id, err)
	}
	return nil
}

func (r *apiRepository) Delete(ctx context.Context, id int64) error {
	if err := r.client.Delete(ctx, batchPath(id)); err != nil {
		return fmt.Errorf("delete batch %d: %w", id, err)
	}
	return nil
}

func (r *apiRepository) Exit(ctx context.Context, id int64, req ExitRequest) error {
	if err := r.client.Post(ctx, batchPath(id)+"/exit", req, nil); err != nil {
		return fmt.Errorf("exit batch %d: %w", id, err)
	}
	return nil
}
