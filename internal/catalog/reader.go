package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Row is one raw catalog line, keyed by header column name.
type Row map[string]string

// Reader streams rows from a delimited catalog export and tracks byte-based
// progress against the total file size.
type Reader struct {
	file      *os.File
	csv       *csv.Reader
	header    []string
	totalSize int64
	readBytes int64
	rows      int
}

// Open opens the catalog file and reads its header row.
func Open(path string) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	// Description fields can carry stray quotes.
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	return &Reader{
		file:      file,
		csv:       cr,
		header:    header,
		totalSize: info.Size(),
	}, nil
}

// Next returns the next row, or io.EOF at end of stream.
func (r *Reader) Next() (Row, error) {
	record, err := r.csv.Read()
	if err != nil {
		return nil, err
	}

	row := make(Row, len(r.header))
	var lineBytes int64
	for i, name := range r.header {
		if i < len(record) {
			row[name] = record[i]
			lineBytes += int64(len(record[i]))
		}
	}

	// Approximates the raw line length: the joined values plus a newline.
	if len(record) > 1 {
		lineBytes += int64(len(record) - 1)
	}
	r.readBytes += lineBytes + 1
	r.rows++

	return row, nil
}

// TotalBytes returns the catalog file size measured at open time.
func (r *Reader) TotalBytes() int64 { return r.totalSize }

// ReadBytes returns the approximate byte count consumed so far.
func (r *Reader) ReadBytes() int64 { return r.readBytes }

// Rows returns the number of rows read so far, excluding the header.
func (r *Reader) Rows() int { return r.rows }

// Close closes the underlying file.
func (r *Reader) Close() error { return r.file.Close() }
