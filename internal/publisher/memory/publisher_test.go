package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	attrs := map[string]string{"job": "legal_decisions_small"}
	id1, err := pub.Publish(context.Background(), map[string]string{"k": "v"}, attrs)
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "payload", nil)
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	attrs["job"] = "changed"
	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "legal_decisions_small", msgs[0].Attributes["job"])
	assert.Equal(t, "payload", msgs[1].Payload)

	msgs[0].Payload = "modified"
	assert.NotEqual(t, "modified", pub.Messages()[0].Payload)
}

func TestPublisherCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Publish(ctx, "x", nil)
	assert.Error(t, err)
	assert.Empty(t, New().Messages())
}
