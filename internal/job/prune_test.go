package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupppig/dchunk/internal/manifest"
)

func serialized(t *testing.T, name string, age time.Duration) []byte {
	t.Helper()
	m := &manifest.Manifest{ID: name, Name: name, Records: name + ".records", Version: manifest.FormatVersion, CreatedAt: time.Now().Add(-age)}
	data, err := m.Serialize()
	require.NoError(t, err)
	return data
}

func TestPruneManager_Keep(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)

	ms.On("ListMetadata", ctx, "").Return([]string{"b1.manifest", "b1.records", "b2.manifest", "b3.manifest"}, nil)
	ms.On("GetMetadata", ctx, "b1.manifest").Return(serialized(t, "b1", 24*time.Hour), nil)
	ms.On("GetMetadata", ctx, "b2.manifest").Return(serialized(t, "b2", 12*time.Hour), nil)
	ms.On("GetMetadata", ctx, "b3.manifest").Return(serialized(t, "b3", 0), nil)

	// b1 is the oldest of three with two kept.
	ms.On("Delete", ctx, "b1.records").Return(nil)
	ms.On("Delete", ctx, "b1.manifest").Return(nil)

	pruned, err := NewPruneManager(ms, PruneOptions{Keep: 2}).Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, pruned)

	ms.AssertExpectations(t)
}

func TestPruneManager_Retention(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)

	ms.On("ListMetadata", ctx, "img/").Return([]string{"img/old.manifest", "img/new.manifest"}, nil)
	ms.On("GetMetadata", ctx, "img/old.manifest").Return(serialized(t, "img/old", 48*time.Hour), nil)
	ms.On("GetMetadata", ctx, "img/new.manifest").Return(serialized(t, "img/new", time.Hour), nil)

	ms.On("Delete", ctx, "img/old.records").Return(nil)
	ms.On("Delete", ctx, "img/old.manifest").Return(nil)

	pruned, err := NewPruneManager(ms, PruneOptions{Retention: 24 * time.Hour, Prefix: "img/"}).Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"img/old"}, pruned)

	ms.AssertExpectations(t)
}

func TestPruneManager_DryRunDeletesNothing(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)

	ms.On("ListMetadata", ctx, "").Return([]string{"a.manifest", "b.manifest"}, nil)
	ms.On("GetMetadata", ctx, "a.manifest").Return(serialized(t, "a", 2*time.Hour), nil)
	ms.On("GetMetadata", ctx, "b.manifest").Return(serialized(t, "b", time.Hour), nil)

	pruned, err := NewPruneManager(ms, PruneOptions{Keep: 1, DryRun: true}).Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pruned)
	ms.AssertNotCalled(t, "Delete")
}

func TestPruneManager_NoPolicy(t *testing.T) {
	pruned, err := NewPruneManager(new(MockStorage), PruneOptions{}).Prune(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, pruned)
}

func TestList_SkipsUnreadable(t *testing.T) {
	ctx := context.Background()
	ms := new(MockStorage)
	ms.On("ListMetadata", ctx, "").Return([]string{"bad.manifest", "good.manifest"}, nil)
	ms.On("GetMetadata", ctx, "bad.manifest").Return([]byte("{"), nil)
	ms.On("GetMetadata", ctx, "good.manifest").Return(serialized(t, "good", 0), nil)

	list, err := List(ctx, ms, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].Name)
}
