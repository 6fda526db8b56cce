package staging_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bodymetrics/internal/staging"
)

func TestLocalStager_StageAndOpen(t *testing.T) {
	ctx := context.Background()
	stager, err := staging.NewLocalStager(t.TempDir(), 1<<20)
	require.NoError(t, err)

	payload := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 600)...)
	staged, err := stager.Stage(ctx, "key-1", bytes.NewReader(payload))

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), staged.Size)
	assert.Equal(t, "image/png", staged.SniffedType)

	f, err := stager.Open(ctx, "key-1")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalStager_EnforcesCap(t *testing.T) {
	ctx := context.Background()
	stager, err := staging.NewLocalStager(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = stager.Stage(ctx, "key-1", strings.NewReader(strings.Repeat("a", 2048)))

	assert.ErrorIs(t, err, staging.ErrTooLarge)

	// The partial file must not linger.
	_, err = stager.Open(ctx, "key-1")
	assert.Error(t, err)
}

func TestLocalStager_CapIsInclusive(t *testing.T) {
	ctx := context.Background()
	stager, err := staging.NewLocalStager(t.TempDir(), 1024)
	require.NoError(t, err)

	staged, err := stager.Stage(ctx, "key-1", strings.NewReader(strings.Repeat("a", 1024)))

	require.NoError(t, err)
	assert.Equal(t, int64(1024), staged.Size)
}

func TestLocalStager_RejectsEmptyFile(t *testing.T) {
	ctx := context.Background()
	stager, err := staging.NewLocalStager(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = stager.Stage(ctx, "key-1", strings.NewReader(""))

	assert.Error(t, err)
}

func TestLocalStager_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stager, err := staging.NewLocalStager(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = stager.Stage(ctx, "key-1", strings.NewReader("payload"))
	require.NoError(t, err)

	assert.NoError(t, stager.Remove(ctx, "key-1"))
	assert.NoError(t, stager.Remove(ctx, "key-1"))
}
