package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb
}

func TestResolvePathTraversal(t *testing.T) {
	sb := newTestSandbox(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "file.txt", false},
		{"nested path", "a/b/c.txt", false},
		{"dot segments resolved inside", "a/../b.txt", false},
		{"escape with dotdot", "../outside.txt", true},
		{"deep escape", "a/../../../etc/passwd", true},
		{"absolute path", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := sb.ResolvePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(resolved, sb.BaseDir()))
		})
	}
}

func TestWriteAndReadFile(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.WriteFile("sub/dir/file.txt", []byte("hello")))

	data, err := sb.ReadFile("sub/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := sb.Exists("sub/dir/file.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = sb.Exists("missing.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAtomicWrite(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.AtomicWrite("data.json", []byte(`{"k":"v"}`)))

	data, err := sb.ReadFile("data.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(data))

	// no temp files left behind
	entries, err := sb.List(".")
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}

func TestAtomicWriteReader(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.AtomicWriteReader("media/x.png", strings.NewReader("pngbytes")))

	size, err := sb.Size("media/x.png")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestRemoveAllProtectsBase(t *testing.T) {
	sb := newTestSandbox(t)

	require.NoError(t, sb.WriteFile("dir/file.txt", []byte("x")))
	require.NoError(t, sb.RemoveAll("dir"))

	exists, err := sb.Exists("dir")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, sb.RemoveAll("."))
}

func TestOpenFileCreatesParents(t *testing.T) {
	sb := newTestSandbox(t)

	f, err := sb.OpenFile("deep/nested/file.bin", os.O_CREATE|os.O_WRONLY, 0640)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	exists, err := sb.Exists("deep/nested/file.bin")
	require.NoError(t, err)
	assert.True(t, exists)
}
