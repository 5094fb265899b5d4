package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"portfolio/backend/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("无效级别回退到 info", func(t *testing.T) {
		log, err := New(config.LogConfig{Level: "loud"})

		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("写入日志文件", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "server.log")

		log, err := New(config.LogConfig{Level: "debug", File: file})
		require.NoError(t, err)
		log.Info("hello file")
		_ = log.Sync()

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello file")
	})
}
