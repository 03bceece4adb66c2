package remote

import (
	"context"
	"fmt"

	"github.com/nstogner/labassist/pkg/domain"
)

// Inventory lists and deletes remote resources by kind. It is how the
// sweeper sees the remote side.
type Inventory interface {
	List(ctx context.Context, kind domain.ResourceKind) ([]domain.ResourceRecord, error)
	Delete(ctx context.Context, kind domain.ResourceKind, id string) error
}

// NewInventory dispatches Inventory calls to the per-kind operations of c.
// The assistant kind cannot be listed; the bound id is the only one known.
func NewInventory(c Client) Inventory {
	return &inventory{c: c}
}

type inventory struct {
	c Client
}

func (i *inventory) List(ctx context.Context, kind domain.ResourceKind) ([]domain.ResourceRecord, error) {
	switch kind {
	case domain.KindThread:
		return i.c.ListThreads(ctx)
	case domain.KindFile:
		return i.c.ListFiles(ctx)
	case domain.KindVectorIndex:
		return i.c.ListVectorStores(ctx)
	default:
		return nil, fmt.Errorf("listing %s is not supported", kind)
	}
}

func (i *inventory) Delete(ctx context.Context, kind domain.ResourceKind, id string) error {
	switch kind {
	case domain.KindThread:
		return i.c.DeleteThread(ctx, id)
	case domain.KindFile:
		return i.c.DeleteFile(ctx, id)
	case domain.KindVectorIndex:
		return i.c.DeleteVectorStore(ctx, id)
	case domain.KindAssistant:
		return i.c.DeleteAssistant(ctx, id)
	default:
		return fmt.Errorf("deleting %s is not supported", kind)
	}
}
