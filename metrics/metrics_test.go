package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	LockOperationsTotal.WithLabelValues("acquire", "success").Inc()
	LockContentionsTotal.WithLabelValues("textfile-test").Inc()

	path := filepath.Join(t.TempDir(), "projlock.prom")
	require.NoError(t, WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "projlock_lock_operations_total")
	assert.Contains(t, string(content), `projlock_lock_contentions_total{name="textfile-test"} 1`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "projlock.prom"))
	assert.Error(t, err)
}
