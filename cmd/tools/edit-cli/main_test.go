package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func TestParseCoord(t *testing.T) {
	c, err := parseCoord("1, -2,3")
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 1, Y: -2, Z: 3}, c)

	_, err = parseCoord("1,2")
	assert.Error(t, err)
	_, err = parseCoord("a,b,c")
	assert.Error(t, err)
}

func TestSetBlockByName(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	defer store.Close()

	require.NoError(t, setBlock(ctx, store, vec.Vec3{X: 17, Y: 3, Z: -1}, "glass"))
	assert.Error(t, setBlock(ctx, store, vec.Vec3{}, "bedrock"))

	d, err := store.LoadChunk(ctx, vec.Vec3{X: 1, Y: 0, Z: -1})
	require.NoError(t, err)
	assert.Equal(t, block.GlassBlockID, d.Blocks["1:3:15"])
}
