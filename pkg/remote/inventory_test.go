package remote_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/remote/fake"
)

func TestInventoryDispatch(t *testing.T) {
	ctx := context.Background()
	c := fake.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.AddThread("thread_a", created)
	c.AddFile("file_a", domain.PurposeAssistants, created)
	c.AddVectorStore("vs_a", created)
	c.Assistants["asst_a"] = domain.AssistantConfig{Name: "a"}

	inv := remote.NewInventory(c)

	for kind, want := range map[domain.ResourceKind]string{
		domain.KindThread:      "thread_a",
		domain.KindFile:        "file_a",
		domain.KindVectorIndex: "vs_a",
	} {
		records, err := inv.List(ctx, kind)
		require.NoError(t, err, kind)
		require.Len(t, records, 1, kind)
		assert.Equal(t, want, records[0].ID)
		assert.Equal(t, kind, records[0].Kind)

		require.NoError(t, inv.Delete(ctx, kind, want))
		records, err = inv.List(ctx, kind)
		require.NoError(t, err)
		assert.Empty(t, records)
	}

	_, err := inv.List(ctx, domain.KindAssistant)
	assert.Error(t, err)

	require.NoError(t, inv.Delete(ctx, domain.KindAssistant, "asst_a"))
	assert.Empty(t, c.Assistants)

	assert.Error(t, inv.Delete(ctx, domain.ResourceKind("bogus"), "x"))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "text_delta", remote.EventTextDelta.String())
	assert.Equal(t, "citation", remote.EventCitation.String())
	assert.Equal(t, "other", remote.EventOther.String())
}
