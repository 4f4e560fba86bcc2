package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekeyd.pid")
	f, err := Write(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))

	f.Remove()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestEmptyPathIsNoop(t *testing.T) {
	f, err := Write("")
	require.NoError(t, err)
	f.Remove() // must not panic
}

func TestRemoveOnNilFileIsSafe(t *testing.T) {
	var f *File
	f.Remove()
}
