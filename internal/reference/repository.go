package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyetrack/dyetrack/internal/platform/restapi"
)

// Repository reads and extends reference lists.
type Repository interface {
	List(ctx context.Context, kind Kind) ([]Entity, error)
	Create(ctx context.Context, kind Kind, name string) (Entity, error)
}

type apiRepository struct {
	client *restapi.Client
}

// NewRepository returns a Repository backed by the REST API.
func NewRepository(client *restapi.Client) Repository {
	return &apiRepository{client: client}
}

func (r *apiRepository) List(ctx context.Context, kind Kind) ([]Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var out []Entity
	if err := r.client.Get(ctx, "/"+string(kind), &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if out == nil {
		out = []Entity{}
	}
	return out, nil
}

func (r *apiRepository) Create(ctx context.Context, kind Kind, name string) (Entity, error) {
	if !kind.Valid() {
		return Entity{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entity{}, ErrNameRequired
	}
	var created Entity
	if err := r.client.Post(ctx, "/"+string(kind), map[string]string{"name": name}, &created); err != nil {
		return Entity{}, fmt.Errorf("create %s: %w", kind.Label(), err)
	}
	if created.Name == "" {
		created.Name = name
	}
	return created, nil
}
