package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SegmentWriter appends canonical record bytes to rotating log segment
// files under dir, named segment-NNNNNN.log, rotating once a segment
// reaches maxBytes.
type SegmentWriter struct {
	mu         sync.Mutex
	dir        string
	maxBytes   int64
	index      int
	file       *os.File
	writer     *bufio.Writer
	written    int64
}

// NewSegmentWriter opens (creating dir if necessary) the active segment,
// resuming at the lowest unused index.
func NewSegmentWriter(dir string, maxBytes int64) (*SegmentWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create segment dir: %w", err)
	}

	w := &SegmentWriter{dir: dir, maxBytes: maxBytes}
	if err := w.openSegment(firstFreeIndex(dir)); err != nil {
		return nil, err
	}
	return w, nil
}

func firstFreeIndex(dir string) int {
	idx := 0
	for {
		path := filepath.Join(dir, segmentName(idx))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return idx
		}
		idx++
	}
}

func segmentName(idx int) string {
	return fmt.Sprintf("segment-%06d.log", idx)
}

func (w *SegmentWriter) openSegment(idx int) error {
	path := filepath.Join(w.dir, segmentName(idx))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("store: open segment %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("store: stat segment %s: %w", path, err)
	}

	w.index = idx
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.written = info.Size()
	return nil
}

// Append writes one newline-terminated record line to the active segment,
// rotating to a new segment first if the active one has reached maxBytes.
func (w *SegmentWriter) Append(recordJCS []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.written >= w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	line := append(append([]byte{}, recordJCS...), '\n')
	n, err := w.writer.Write(line)
	if err != nil {
		return fmt.Errorf("store: append to segment: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("store: flush segment: %w", err)
	}
	w.written += int64(n)
	return nil
}

func (w *SegmentWriter) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openSegment(w.index + 1)
}

// Close flushes and closes the active segment file.
func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
