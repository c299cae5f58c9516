package crm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	when := time.Date(2025, 5, 10, 18, 30, 0, 0, time.UTC)

	rec, err := store.Create(ctx, CreateRequest{Name: "Alice", DateTime: when, People: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, StatusActive, rec.Status)

	people := 4
	updated, err := store.Update(ctx, rec.ID, UpdateRequest{People: &people})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.People)
	assert.Equal(t, "Alice", updated.Name)

	same, err := store.Update(ctx, rec.ID, UpdateRequest{})
	require.NoError(t, err)
	assert.Equal(t, updated, same)

	cancelled, err := store.Cancel(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Create(ctx, CreateRequest{Name: "Bob", DateTime: time.Now(), People: 0})
	assert.Error(t, err)

	_, err = store.Cancel(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	zero := 0
	_, err = store.Update(ctx, 1, UpdateRequest{People: &zero})
	assert.Error(t, err)
}
