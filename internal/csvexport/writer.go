package csvexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Writer writes CSV rows to an underlying stream. When the stream was
// opened by Create, Close also closes it.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
	rows   int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Create opens path for writing, truncating an existing file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv file %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

func (w *Writer) Write(record ...string) error {
	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows counts the records written so far, header included.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes pending rows and releases the file.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
		w.closer = nil
	}
	return err
}
