package sweeper

import (
	"context"

	"github.com/nstogner/labassist/pkg/domain"
)

// Usage is a point-in-time count of remote resources.
type Usage struct {
	Threads        int
	AssistantFiles int
	VectorStores   int
	// AssistantID is the bound assistant, empty when none is recorded.
	AssistantID string
	// Errors holds one message per kind that could not be counted.
	Errors map[domain.ResourceKind]string
}

// Survey counts what a sweep would enumerate. Files of other purposes are
// not counted.
func (s *Sweeper) Survey(ctx context.Context) (*Usage, error) {
	u := &Usage{Errors: map[domain.ResourceKind]string{}}

	for _, kind := range []domain.ResourceKind{domain.KindThread, domain.KindFile, domain.KindVectorIndex} {
		records, err := s.cfg.Inventory.List(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return u, ctx.Err()
			}
			u.Errors[kind] = err.Error()
			continue
		}
		switch kind {
		case domain.KindThread:
			u.Threads = len(records)
		case domain.KindFile:
			for _, r := range records {
				if r.Purpose == domain.PurposeAssistants {
					u.AssistantFiles++
				}
			}
		case domain.KindVectorIndex:
			u.VectorStores = len(records)
		}
	}

	id, ok, err := s.cfg.Identities.Load(domain.RoleAssistant)
	if err != nil {
		u.Errors[domain.KindAssistant] = err.Error()
	} else if ok {
		u.AssistantID = id
	}
	return u, nil
}
