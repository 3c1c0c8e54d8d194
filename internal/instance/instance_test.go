package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	require.NoError(t, l.WritePID())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	again, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestAcquireBadPath(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "missing", "md.lock"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}

func TestWritePIDReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.lock")
	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("999999\nstale\n"), 0o644))
	require.NoError(t, l.WritePID())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))
	require.NoError(t, l.Release())
}

func TestWritePIDAfterRelease(t *testing.T) {
	l, err := Acquire(filepath.Join(t.TempDir(), "md.lock"))
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.Error(t, l.WritePID())

	var none *Lock
	assert.Error(t, none.WritePID())
}
