package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// tail keeps the most recent lines written to a log file.
type tail struct {
	lines   []string
	limit   int
	pending int // lines written since the file was last compacted
}

func newTail(limit int) *tail {
	return &tail{limit: max(limit, 1)}
}

func (t *tail) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = append(t.lines[:0], t.lines[len(t.lines)-t.limit:]...)
	}

	t.pending++
}

// full reports whether the file holds enough surplus lines to compact.
func (t *tail) full() bool {
	return t.pending >= t.limit*2
}

// LogRotator wraps a log file and keeps at most maxLines lines in it.
// The file is compacted once twice the capacity has been written.
type LogRotator struct {
	writer   io.Writer
	tail     *tail
	filePath string
	mutex    sync.Mutex
}

// NewLogRotator creates a new LogRotator.
func NewLogRotator(writer io.Writer, maxLines int, filePath string) *LogRotator {
	return &LogRotator{
		writer:   writer,
		tail:     newTail(maxLines),
		filePath: filePath,
	}
}

// Write implements io.Writer and maintains the line buffer.
func (w *LogRotator) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(p)
	if err != nil {
		return n, err
	}

	for line := range bytes.SplitSeq(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		w.tail.push(string(line))

		if w.tail.full() {
			if err := w.rotate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}

			w.tail.pending = len(w.tail.lines)
		}
	}

	return n, nil
}

// Close closes the underlying file if it is closable.
func (w *LogRotator) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// rotate replaces the file contents with the buffered tail.
func (w *LogRotator) rotate() error {
	lines := w.tail.lines
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(w.filePath), "temp-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	var content bytes.Buffer
	for _, line := range lines {
		content.WriteString(line)
		content.WriteByte('\n')
	}

	if _, err := temp.Write(content.Bytes()); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if closer, ok := w.writer.(io.Closer); ok {
		closer.Close()
	}

	// Windows refuses to rename over an existing file
	os.Remove(w.filePath)

	if err := os.Rename(tempPath, w.filePath); err != nil {
		return err
	}

	newFile, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w.writer = newFile

	return nil
}
