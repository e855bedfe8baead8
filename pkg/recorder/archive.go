package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Archiver receives snapshots evicted from a bounded timeline.
type Archiver interface {
	Archive(s Snapshot) error
}

// ArchiveWriter writes snapshots as JSON lines through an optional
// compressor. It is safe for concurrent use.
type ArchiveWriter struct {
	mu        sync.Mutex
	bufWriter *bufio.Writer
	writer    io.WriteCloser
	closer    io.Closer
	count     int
}

// NewArchiveWriter wraps w. The caller keeps ownership of w.
func NewArchiveWriter(w io.Writer, compressionType CompressionType) (*ArchiveWriter, error) {
	bufWriter := bufio.NewWriter(w)
	cw, err := NewCompressedWriter(bufWriter, compressionType)
	if err != nil {
		return nil, err
	}
	return &ArchiveWriter{bufWriter: bufWriter, writer: cw}, nil
}

// CreateArchive opens path for appending and returns a writer that owns the
// file.
func CreateArchive(path string, compressionType CompressionType) (*ArchiveWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	aw, err := NewArchiveWriter(f, compressionType)
	if err != nil {
		f.Close()
		return nil, err
	}
	aw.closer = f
	return aw, nil
}

// Archive appends s to the archive.
func (a *ArchiveWriter) Archive(s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", s.ID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.writer == nil {
		return errors.New("archive is closed")
	}
	if _, err := a.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	a.count++
	return nil
}

// Count returns the number of snapshots archived so far.
func (a *ArchiveWriter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Close flushes everything written and closes the underlying file when the
// writer owns one.
func (a *ArchiveWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.writer == nil {
		return nil
	}
	err := a.writer.Close()
	a.writer = nil
	if ferr := a.bufWriter.Flush(); err == nil {
		err = ferr
	}
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadArchive decodes every snapshot in r.
func ReadArchive(r io.Reader, compressionType CompressionType) ([]Snapshot, error) {
	cr, err := NewCompressedReader(r, compressionType)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	var out []Snapshot
	dec := json.NewDecoder(cr)
	for {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode snapshot %d: %w", len(out)+1, err)
		}
		out = append(out, s)
	}
}

// ReadArchiveFile reads the archive stored at path.
func ReadArchiveFile(path string, compressionType CompressionType) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadArchive(f, compressionType)
}
