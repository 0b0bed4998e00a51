// Package crashlog appends recovered panics to a crash log file together
// with a snapshot of the process memory statistics.
package crashlog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger appends crash entries to a file. The zero value discards entries.
type Logger struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// New creates a Logger writing to path. An empty path disables logging.
func New(path string) *Logger {
	return &Logger{path: path, now: time.Now}
}

// Path returns the crash log location.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends one entry describing value and stack.
func (l *Logger) Record(scope string, value any, stack []byte) error {
	if l == nil || l.path == "" {
		return nil
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	entry := format(l.now(), scope, value, stack, &mem)

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating crash log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening crash log: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing crash log: %w", err)
	}
	return f.Close()
}

func format(at time.Time, scope string, value any, stack []byte, mem *runtime.MemStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s panic in %s: %v\n", at.UTC().Format(time.RFC3339), scope, value)
	fmt.Fprintf(&b, "memory: alloc=%s total_alloc=%s sys=%s heap_inuse=%s heap_objects=%d num_gc=%d goroutines=%d\n",
		humanize.IBytes(mem.Alloc),
		humanize.IBytes(mem.TotalAlloc),
		humanize.IBytes(mem.Sys),
		humanize.IBytes(mem.HeapInuse),
		mem.HeapObjects,
		mem.NumGC,
		runtime.NumGoroutine(),
	)
	b.Write(stack)
	if len(stack) > 0 && stack[len(stack)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
