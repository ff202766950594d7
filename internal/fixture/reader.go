package fixture

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row is one CSV data line with the header it belongs to.
type Row struct {
	Header []string
	Values []string
	Line   int // 1-based data row number, header excluded
}

// Record zips header names to values. Missing trailing values read as "".
func (r Row) Record() map[string]string {
	m := make(map[string]string, len(r.Header))
	for i, name := range r.Header {
		m[name] = r.Value(i)
	}
	return m
}

// Value returns the i-th value, "" when the line was short.
func (r Row) Value(i int) string {
	if i < len(r.Values) {
		return r.Values[i]
	}
	return ""
}

// Reader streams a comma-delimited fixture: the first line is the header, the
// rest are data rows. It is forward-only; reopen the file to start over.
type Reader struct {
	csv        *csv.Reader
	closer     io.Closer
	header     []string
	headerRead bool
	line       int
	err        error
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rd := &Reader{csv: cr}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// ReadFile opens a fixture (see Open), collapses blank lines and returns a Reader over it.
func ReadFile(ctx context.Context, path string, opts Options) (*Reader, error) {
	rc, err := Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	rd := NewReader(newBlankLineReader(rc))
	rd.closer = rc
	return rd, nil
}

// Header returns the trimmed column names. An empty input has no header and no rows.
func (r *Reader) Header() ([]string, error) {
	if r.headerRead {
		return r.header, r.err
	}
	r.headerRead = true

	rec, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		r.err = fmt.Errorf("failed to read CSV header: %w", err)
		return nil, r.err
	}
	r.header = make([]string, len(rec))
	for i, name := range rec {
		r.header[i] = strings.TrimSpace(name)
	}
	return r.header, nil
}

// Next returns the next data row. It returns false at the end of input or on
// error; check Err afterwards.
func (r *Reader) Next() (Row, bool) {
	if _, err := r.Header(); err != nil || r.header == nil {
		return Row{}, false
	}
	if r.err != nil {
		return Row{}, false
	}
	rec, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, false
	}
	if err != nil {
		r.err = fmt.Errorf("failed to read CSV record %d: %w", r.line+1, err)
		return Row{}, false
	}
	r.line++
	return Row{Header: r.header, Values: rec, Line: r.line}, true
}

func (r *Reader) Err() error { return r.err }

// Close releases the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}

// NormalizeBlankLines collapses each "\n\n" into "\n", left to right.
// Templating tends to leave blank lines behind.
func NormalizeBlankLines(text string) string {
	return strings.ReplaceAll(text, "\n\n", "\n")
}

// blankLineReader applies NormalizeBlankLines to a stream.
type blankLineReader struct {
	br *bufio.Reader
}

func newBlankLineReader(r io.Reader) io.Reader {
	return &blankLineReader{br: bufio.NewReader(r)}
}

func (b *blankLineReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		c, err := b.br.ReadByte()
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if c == '\n' {
			if next, err := b.br.Peek(1); err == nil && next[0] == '\n' {
				b.br.ReadByte()
			}
		}
		p[n] = c
		n++
		if b.br.Buffered() == 0 && n > 0 {
			// hand back what we have instead of blocking on the source
			return n, nil
		}
	}
	return n, nil
}
