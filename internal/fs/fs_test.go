package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func readAll(fsys FileSystem, name string) (string, error) {
	var buf bytes.Buffer
	err := ReadFile(fsys, name, func(r io.Reader) error {
		_, err := io.Copy(&buf, r)
		return err
	})
	return buf.String(), err
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.cmhd")

	require.NoError(t, WriteFile(Default, path, 0o644, writeString("first")))
	require.NoError(t, WriteFile(Default, path, 0o644, writeString("second")))

	got, err := readAll(Default, path)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = Default.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFile_Faults(t *testing.T) {
	tests := []struct {
		name  string
		fault Fault
	}{
		{"write", Fault{FailAfterBytes: 3}},
		{"sync", Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"close", Fault{FailAfterBytes: -1, FailOnClose: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "heap.cmhd")
			require.NoError(t, WriteFile(Default, path, 0o644, writeString("old")))

			ffs := NewFaultyFS(nil)
			ffs.AddRule(".tmp", tt.fault)

			err := WriteFile(ffs, path, 0o644, writeString("replacement"))
			assert.ErrorIs(t, err, ErrInjected)

			// The previous image survives and no temporary file is left behind.
			got, err := readAll(Default, path)
			require.NoError(t, err)
			assert.Equal(t, "old", got)

			_, err = ffs.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFaultyFS_NoMatchingRule(t *testing.T) {
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("other", Fault{FailAfterBytes: 0})

	path := filepath.Join(t.TempDir(), "heap.cmhd")
	require.NoError(t, WriteFile(ffs, path, 0o644, writeString("ok")))

	got, err := readAll(ffs, path)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := readAll(Default, filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(err))
}
