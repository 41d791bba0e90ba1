package monitor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Chunk is the result of one Tailer poll.
type Chunk struct {
	// Data holds the bytes in [From, From+len(Data)). Empty when the file
	// is missing or has not grown.
	Data []byte
	From int64
	// Reset is true when the read started over at byte 0 because the file
	// shrank (rotation) or the path changed since the previous poll.
	Reset bool
}

// Tailer reads a log file incrementally by byte offset. It is safe for
// concurrent use: the poll loop calls Poll while SetPath may arrive from
// another goroutine.
type Tailer struct {
	mu      sync.Mutex
	path    string
	offset  int64
	pending bool // offset was reset by SetPath; report it on the next poll
}

func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

func (t *Tailer) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

func (t *Tailer) Offset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

// SeekEnd moves the offset to the current end of the file so existing
// content is skipped. A missing file leaves the offset at 0.
func (t *Tailer) SeekEnd() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
	info, err := os.Stat(t.path)
	if err != nil {
		t.offset = 0
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	t.offset = info.Size()
	return nil
}

// SetPath switches to a different file and starts it from byte 0.
func (t *Tailer) SetPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = path
	t.offset = 0
	t.pending = true
}

// Poll reads everything appended since the last successful poll. The
// offset advances only after the whole range has been read, so a failed
// read is retried in full next time.
func (t *Tailer) Poll() (Chunk, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{}, fmt.Errorf("stat %s: %w", t.path, err)
	}

	size := info.Size()
	reset := t.pending
	if size < t.offset {
		log.Printf("[monitor] %s shrank from %d to %d bytes, reading from start", t.path, t.offset, size)
		t.offset = 0
		reset = true
	}
	if size == t.offset {
		return Chunk{From: t.offset, Reset: reset}, nil
	}

	data, err := readRange(t.path, t.offset, size)
	if err != nil {
		return Chunk{}, err
	}

	chunk := Chunk{Data: data, From: t.offset, Reset: reset}
	t.offset = size
	t.pending = false
	return chunk, nil
}

// readRange reads exactly the bytes in [from, to) of path.
func readRange(path string, from, to int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, to-from)
	if _, err := io.ReadFull(io.NewSectionReader(f, from, to-from), buf); err != nil {
		return nil, fmt.Errorf("reading %s [%d,%d): %w", path, from, to, err)
	}
	return buf, nil
}
