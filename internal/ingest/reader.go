package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// rowReader streams data rows from delimited text with a header row.
// Only the current record is held in memory.
type rowReader struct {
	r       *csv.Reader
	headers []string
}

// newRowReader consumes the header row. A source with no header at all
// yields a reader whose Next returns io.EOF immediately.
func newRowReader(src io.Reader, delimiter rune) (*rowReader, error) {
	br := bufio.NewReader(src)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &rowReader{r: r}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// ReuseRecord: the header slice is overwritten by the next Read.
	hs := make([]string, len(headers))
	for i, h := range headers {
		hs[i] = strings.TrimSpace(h)
	}
	return &rowReader{r: r, headers: hs}, nil
}

// Next returns the next data row and its line number in the source.
// A *csv.ParseError concerns one row only; any other error is an I/O failure.
func (rr *rowReader) Next() (Row, int, error) {
	if rr.headers == nil {
		return nil, 0, io.EOF
	}

	record, err := rr.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, pe.Line, err
		}
		return nil, 0, err
	}
	line, _ := rr.r.FieldPos(0)

	row := make(Row, len(rr.headers))
	for i, h := range rr.headers {
		if i < len(record) {
			row[h] = record[i]
		}
	}
	return row, line, nil
}
