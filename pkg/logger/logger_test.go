package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInitializeWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	l := Initialize("chat_service", dir)

	l.Info("hello", zap.String("user", "a-test-com"))
	l.Sync()

	name := filepath.Join(dir, "log_"+time.Now().Format("2006-01-02")+".log")
	b, err := os.ReadFile(name)
	assert.NoError(t, err)
	assert.Contains(t, string(b), "hello")
	assert.Contains(t, string(b), "chat_service")
}

func TestSetDebugMode(t *testing.T) {
	l := Initialize("", t.TempDir())
	assert.False(t, l.DebugMode())

	l.SetDebugMode(true)
	assert.True(t, l.DebugMode())

	l.SetDebugMode(false)
	assert.False(t, l.DebugMode())
}

func TestSetNewNop(t *testing.T) {
	SetNewNop()
	assert.NotNil(t, Log)
	// 不應 panic
	Log.Info("ignored")
	Log.Error("ignored", zap.Error(assert.AnError))
}
