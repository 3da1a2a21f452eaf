package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/infrastructure/config"
)

func TestNew_Outputs(t *testing.T) {
	for _, output := range []string{"", "stderr", "stdout"} {
		l, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: output})
		require.NoError(t, err, output)
		assert.NotNil(t, l)
	}

	_, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: "syslog"})
	assert.Error(t, err)

	_, err = New(config.LoggerConfig{Level: "info", Format: "json", Output: "file"})
	assert.Error(t, err, "file output needs a filename")

	_, err = New(config.LoggerConfig{Level: "loud", Format: "json", Output: "stderr"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban.log")

	l, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: "file", Filename: path})
	require.NoError(t, err)

	l.WithComponent("test").LogTaskEvent("created", entities.Task{ID: "t1", Status: entities.TaskStatusNew, Author: "Ana"})
	l.Debugw("hidden below info")
	_ = l.Close()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"msg":"Task created"`)
	assert.Contains(t, out, `"task_id":"t1"`)
	assert.Contains(t, out, `"component":"test"`)
	assert.NotContains(t, out, "hidden below info")
}
