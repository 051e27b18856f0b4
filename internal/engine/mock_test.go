package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotz/internal/engine"
)

func TestMockEngine_ImagesFollowBuildsAndRemovals(t *testing.T) {
	ctx := context.Background()
	m := engine.NewMockEngine("base")

	ok, err := m.ImageExists(ctx, "base")
	require.NoError(t, err)
	assert.True(t, ok)

	code, err := m.BuildImage(ctx, engine.BuildSpec{Tag: "proj"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	ok, _ = m.ImageExists(ctx, "proj")
	assert.True(t, ok)

	require.NoError(t, m.RemoveImage(ctx, "proj"))
	ok, _ = m.ImageExists(ctx, "proj")
	assert.False(t, ok)

	assert.Equal(t, []string{"ImageExists", "BuildImage", "ImageExists", "RemoveImage", "ImageExists"}, m.Methods())
}

func TestMockEngine_FailedBuildLeavesNoImage(t *testing.T) {
	ctx := context.Background()
	m := engine.NewMockEngine()
	m.BuildCode = 2

	code, err := m.BuildImage(ctx, engine.BuildSpec{Tag: "proj"})
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	ok, _ := m.ImageExists(ctx, "proj")
	assert.False(t, ok)
}

func TestMockEngine_RunFn(t *testing.T) {
	m := engine.NewMockEngine()
	m.RunFn = func(ctx context.Context, spec engine.RunSpec) (int, error) {
		if spec.Name == "boom" {
			return 0, errors.New("boom")
		}
		return 7, nil
	}

	code, err := m.Run(context.Background(), engine.RunSpec{Name: "ok"})
	require.NoError(t, err)
	assert.Equal(t, 7, code)

	_, err = m.Run(context.Background(), engine.RunSpec{Name: "boom"})
	assert.Error(t, err)
	require.Len(t, m.CallsTo("Run"), 2)
	assert.Equal(t, "ok", m.CallsTo("Run")[0].Run.Name)
}
