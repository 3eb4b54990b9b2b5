package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogContract(t *testing.T) {
	ports.RunCatalogContract(t, NewCatalog())
}

func TestBusContract(t *testing.T) {
	ports.RunEventBusContract(t, NewBus(nil))
}

func TestNewLoader(t *testing.T) {
	c, err := NewLoader(map[string]string{
		"workflow.json": `{"startNode": 1, "nodes": [{"id": 1, "question": "Hi"}]}`,
		"other.yaml":    "startNode: a\nnodes:\n  - id: a\n    question: Yo\n",
	})
	require.NoError(t, err)

	names, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"other.yaml", "workflow.json"}, names)

	g, err := c.Load(context.Background(), "workflow.json")
	require.NoError(t, err)
	assert.Equal(t, "Hi", g.Start().Prompt)

	_, err = NewLoader(map[string]string{"bad.json": `{"nodes": []}`})
	var loadErr *domain.GraphLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestBus_UnsubscribesOnCancel(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := bus.Subscribe(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("c1"))

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers("c1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestBus_DropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, "c1")
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, bus.Publish(ctx, domain.ChunkEvent("c1", "x", "t")))
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestCompleter_StreamsWords(t *testing.T) {
	c := NewCompleter("hello there friend", "second")

	collect := func() string {
		ch, err := c.Stream(context.Background(), nil)
		require.NoError(t, err)
		var b strings.Builder
		n := 0
		for chunk := range ch {
			require.NoError(t, chunk.Err)
			b.WriteString(chunk.Text)
			n++
		}
		if b.String() == "hello there friend" {
			assert.Equal(t, 3, n)
		}
		return b.String()
	}

	assert.Equal(t, "hello there friend", collect())
	assert.Equal(t, "second", collect())
	assert.Equal(t, "hello there friend", collect())
	assert.Equal(t, 3, c.Calls())
}

func TestCompleter_StopsOnCancel(t *testing.T) {
	c := NewCompleter("a b c d e f")
	c.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, nil)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// at most a chunk in flight; the channel must close soon after
			for range ch {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}
}
