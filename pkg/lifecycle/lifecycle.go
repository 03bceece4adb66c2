// Package lifecycle keeps the remote assistant in step with the local
// configuration.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/store"
)

// Manager creates or updates the assistant bound to domain.RoleAssistant.
type Manager struct {
	identities store.IdentityStore
	assistants remote.Assistants
}

func NewManager(identities store.IdentityStore, assistants remote.Assistants) *Manager {
	return &Manager{identities: identities, assistants: assistants}
}

// Ensure converges the remote assistant to cfg. With no recorded binding a
// new assistant is created and recorded; otherwise the recorded assistant is
// updated with every field of cfg and its id returned unchanged.
//
// A failure leaves the binding as it was. If the create succeeds but the
// binding cannot be written, the error names the orphaned assistant id.
func (m *Manager) Ensure(ctx context.Context, cfg domain.AssistantConfig) (domain.Identity, error) {
	id, ok, err := m.identities.Load(domain.RoleAssistant)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("loading assistant binding: %w", err)
	}

	if !ok {
		newID, err := m.assistants.CreateAssistant(ctx, cfg)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("creating assistant: %w", err)
		}
		if err := m.identities.Save(domain.RoleAssistant, newID); err != nil {
			return domain.Identity{}, fmt.Errorf("recording assistant %s: %w", newID, err)
		}
		slog.Info("Created assistant", "assistantID", newID, "model", cfg.Model)
		return domain.Identity{Role: domain.RoleAssistant, RemoteID: newID, Created: true}, nil
	}

	if err := m.assistants.UpdateAssistant(ctx, id, cfg); err != nil {
		return domain.Identity{}, fmt.Errorf("updating assistant: %w", err)
	}
	slog.Info("Updated assistant", "assistantID", id, "model", cfg.Model)
	return domain.Identity{Role: domain.RoleAssistant, RemoteID: id}, nil
}

// Current returns the recorded assistant binding without contacting the
// remote side. It returns domain.ErrNoAssistant when none is recorded.
func (m *Manager) Current() (domain.Identity, error) {
	id, ok, err := m.identities.Load(domain.RoleAssistant)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("loading assistant binding: %w", err)
	}
	if !ok {
		return domain.Identity{}, domain.ErrNoAssistant
	}
	return domain.Identity{Role: domain.RoleAssistant, RemoteID: id}, nil
}
