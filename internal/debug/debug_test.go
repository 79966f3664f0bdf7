package debug

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func withDebug(t *testing.T) *syncBuffer {
	t.Helper()
	t.Setenv("DEBUG", "1")
	buf := &syncBuffer{}
	SetDebugOutput(buf)
	SetQuietMode(false)
	t.Cleanup(func() {
		SetDebugOutput(nil)
		SetQuietMode(false)
	})
	return buf
}

func TestIsDebugEnabled(t *testing.T) {
	t.Setenv("DEBUG", "")
	assert.False(t, IsDebugEnabled())

	t.Setenv("DEBUG", "true")
	assert.True(t, IsDebugEnabled())

	SetQuietMode(true)
	defer SetQuietMode(false)
	assert.False(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	buf := withDebug(t)

	Log("SPANLIST", "built %d segments\n", 3)
	assert.Equal(t, "[DEBUG:SPANLIST] built 3 segments\n", buf.String())
}

func TestLog_QuietMode(t *testing.T) {
	buf := withDebug(t)
	SetQuietMode(true)

	Log("STORE", "upsert\n")
	Printf("plain\n")
	assert.Empty(t, buf.String())
}

func TestLogHelpers(t *testing.T) {
	buf := withDebug(t)

	LogIndexing("a\n")
	LogQuery("b\n")
	LogStore("c\n")
	Printf("d\n")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG:INDEX] a")
	assert.Contains(t, out, "[DEBUG:QUERY] b")
	assert.Contains(t, out, "[DEBUG:STORE] c")
	assert.Contains(t, out, "[DEBUG] d")
}

func TestFatal(t *testing.T) {
	buf := withDebug(t)

	err := Fatal("store %s unavailable", "main")
	require.Error(t, err)
	assert.Equal(t, "fatal error: store main unavailable", err.Error())
	assert.Contains(t, buf.String(), "[FATAL] store main unavailable")
}

func TestNoOutputWithNilWriter(t *testing.T) {
	t.Setenv("DEBUG", "1")
	SetDebugOutput(nil)

	assert.NotPanics(t, func() {
		Log("INDEX", "nothing\n")
		Printf("nothing\n")
	})
}

func TestConcurrentLogging(t *testing.T) {
	buf := withDebug(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				Log("INDEX", "worker %d line %d\n", n, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, strings.Count(buf.String(), "[DEBUG:INDEX]"))
}

func TestInitDebugLogFile(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv("DEBUG", "")

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	assert.True(t, IsDebugEnabled(), "an open log file switches debugging on")

	Log("STORE", "to file\n")
	require.NoError(t, CloseDebugLog())
	assert.False(t, IsDebugEnabled())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[DEBUG:STORE] to file")

	assert.NoError(t, CloseDebugLog())
}
