package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGetRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	url, err := PutBytes(ctx, s, "run-1/test.spec.js", []byte("console.log('hi')"), "text/javascript")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))

	data, err := GetBytes(ctx, s, "run-1/test.spec.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(data))
}

func TestFSStore_GetMissingReturnsNotFound(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "no-such-run/summary.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_OverwriteByKey(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = PutBytes(ctx, s, "run-1/logs/stdout.log", []byte("first"), "text/plain")
	require.NoError(t, err)
	_, err = PutBytes(ctx, s, "run-1/logs/stdout.log", []byte("second"), "text/plain")
	require.NoError(t, err)

	data, err := GetBytes(ctx, s, "run-1/logs/stdout.log")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// Re-delivery overwrites; it never appends a duplicate object.
	objs, err := s.List(ctx, "run-1/logs/")
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}

func TestFSStore_ListByPrefix(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{
		"run-1/screenshots/login.png",
		"run-1/logs/stdout.log",
		"run-2/logs/stdout.log",
	} {
		_, err := PutBytes(ctx, s, key, []byte("x"), "")
		require.NoError(t, err)
	}

	objs, err := s.List(ctx, "run-1/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "run-1/logs/stdout.log", objs[0].Key)
	assert.Equal(t, "run-1/screenshots/login.png", objs[1].Key)

	empty, err := s.List(ctx, "run-3/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFSStore_RejectsTraversalKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = PutBytes(context.Background(), s, "../escape", []byte("x"), "")
	assert.Error(t, err)

	_, err = s.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "r1/test.spec.js", ScriptKey("r1"))
	assert.Equal(t, "r1/summary.json", SummaryKey("r1"))
	assert.Equal(t, "r1/screenshots/login.png", EvidenceKey("r1", CategoryScreenshots, "login.png"))
}
