package message

import (
	"context"
	"testing"

	"cipher_chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	list, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	n, err := s.Append(ctx, "a", model.RawMessage{Name: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.Append(ctx, "a", model.RawMessage{Name: "2", Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = s.Append(ctx, "b", model.RawMessage{Name: "x"})
	require.NoError(t, err)

	list, err = s.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].Name)
	assert.Equal(t, "2", list[1].Name)

	// callers cannot mutate the stored list
	list[0].Name = "changed"
	again, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", again[0].Name)

	count, err := s.Count(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*MongoStore)(nil)
)
