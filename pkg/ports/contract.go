package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCatalogContract verifies that a WorkflowCatalog implementation adheres to the interface contract.
func RunCatalogContract(t *testing.T, catalog WorkflowCatalog) {
	ctx := context.Background()
	name := "contract-" + time.Now().Format("20060102150405") + ".json"

	graph, err := domain.NewGraph(name, "contract", "1", []*domain.Node{
		{ID: "1", Prompt: "Ready?", Kind: domain.NodeChoice, Answers: []domain.Answer{
			{Label: "Yes", Target: "2"},
			{Label: "Repeat"},
		}},
		{ID: "2", Prompt: "Done", Kind: domain.NodeTerminal},
	})
	require.NoError(t, err)

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, catalog.Save(ctx, name, graph))

		loaded, err := catalog.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "1", loaded.StartNodeID)
		assert.Equal(t, 2, loaded.Len())

		start := loaded.Start()
		assert.Equal(t, "Ready?", start.Prompt)
		assert.Equal(t, domain.NodeChoice, start.Kind)
		assert.Equal(t, []domain.Answer{{Label: "Yes", Target: "2"}, {Label: "Repeat"}}, start.Answers)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := catalog.Load(ctx, "missing-"+name)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		names, err := catalog.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, name)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		edited := graph.WithNode(&domain.Node{ID: "3", Prompt: "Extra", Kind: domain.NodeFreeText})
		require.NoError(t, catalog.Save(ctx, name, edited))

		loaded, err := catalog.Load(ctx, name)
		require.NoError(t, err)
		n, ok := loaded.Resolve("3")
		require.True(t, ok)
		assert.Equal(t, "Extra", n.Prompt)
	})
}

// RunEventBusContract verifies that an EventBus implementation adheres to the interface contract.
func RunEventBusContract(t *testing.T, bus EventBus) {
	t.Run("Delivers Only Own Conversation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := bus.Subscribe(ctx, "conv-a")
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, domain.NoticeEvent("conv-b", domain.KindUnknown, "not yours")))
		require.NoError(t, bus.Publish(ctx, domain.ChunkEvent("conv-a", "x1", "hello")))

		select {
		case ev := <-events:
			assert.Equal(t, domain.EventStreamChunk, ev.Type)
			assert.Equal(t, "conv-a", ev.ConversationID)
			assert.Equal(t, "hello", ev.Text)
			assert.Equal(t, "x1", ev.ExchangeID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("Closes On Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := bus.Subscribe(ctx, "conv-c")
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok, "channel should be closed after cancel")
		case <-time.After(2 * time.Second):
			t.Fatal("subscription was not closed")
		}
	})
}
