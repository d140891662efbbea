package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Sink accepts archive entries and produces one blob.
type Sink interface {
	// Add stores data under path. Adding an existing path replaces its data in place.
	Add(path string, data []byte) error
	// Close finalizes the blob. The sink is unusable afterwards.
	Close() ([]byte, error)
}

var errSinkClosed = errors.New("archive: sink closed")

type zipEntry struct {
	path string
	data []byte
}

// ZipSink builds a DEFLATE-compressed ZIP in memory.
type ZipSink struct {
	entries  []zipEntry
	index    map[string]int
	modified time.Time
	closed   bool
}

// NewZipSink returns an empty ZipSink stamping entries with the current time.
func NewZipSink() *ZipSink {
	return &ZipSink{index: make(map[string]int), modified: time.Now()}
}

// Add implements Sink.
func (z *ZipSink) Add(path string, data []byte) error {
	if z.closed {
		return errSinkClosed
	}
	if i, ok := z.index[path]; ok {
		z.entries[i].data = data
		return nil
	}
	z.index[path] = len(z.entries)
	z.entries = append(z.entries, zipEntry{path: path, data: data})
	return nil
}

// Len returns the number of distinct entries added so far.
func (z *ZipSink) Len() int {
	return len(z.entries)
}

// Close implements Sink.
func (z *ZipSink) Close() ([]byte, error) {
	if z.closed {
		return nil, errSinkClosed
	}
	z.closed = true

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range z.entries {
		f, err := w.CreateHeader(&zip.FileHeader{Name: e.path, Method: zip.Deflate, Modified: z.modified})
		if err != nil {
			return nil, fmt.Errorf("create zip entry %q: %w", e.path, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return nil, fmt.Errorf("write zip entry %q: %w", e.path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
