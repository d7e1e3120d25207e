package parser

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

// CSVReader turns a CSV document with a header row into raw entries that
// ParseRecords and ParseRules accept.
type CSVReader struct {
	delimiter rune
	reader    *csv.Reader
	headers   []string
	row       int
}

// CSVOption configures a CSVReader
type CSVOption func(*CSVReader)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) CSVOption {
	return func(r *CSVReader) {
		r.delimiter = d
	}
}

// NewCSVReader strips a UTF-8 BOM, checks the encoding and reads the header.
func NewCSVReader(r io.Reader, opts ...CSVOption) (*CSVReader, error) {
	c := &CSVReader{delimiter: ','}
	for _, opt := range opts {
		opt(c)
	}

	buf := bufio.NewReader(r)
	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}
	if err := validateUTF8(buf); err != nil {
		return nil, err
	}

	c.reader = csv.NewReader(buf)
	c.reader.Comma = c.delimiter
	c.reader.LazyQuotes = true
	c.reader.TrimLeadingSpace = true
	c.reader.FieldsPerRecord = -1

	header, err := c.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	c.headers = make([]string, len(header))
	for i, h := range header {
		c.headers[i] = strings.TrimSpace(h)
	}
	return c, nil
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// A rune may straddle the peek boundary.
	if len(content) == checkSize {
		for i := 0; i < utf8.UTFMax && !utf8.Valid(content); i++ {
			content = content[:len(content)-1]
		}
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

// Headers returns the column names
func (c *CSVReader) Headers() []string {
	return c.headers
}

// ReadAll reads every remaining row. Empty cells are left out of the entry.
func (c *CSVReader) ReadAll() ([]map[string]any, error) {
	var out []map[string]any
	for {
		record, err := c.reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		c.row++
		if err != nil {
			return nil, fieldError(c.row, "", ErrCodeInvalidCSV, "%v", err)
		}
		out = append(out, c.entry(record))
	}
}

func (c *CSVReader) entry(record []string) map[string]any {
	e := make(map[string]any, len(record))
	for i, cell := range record {
		if i >= len(c.headers) || c.headers[i] == "" {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		e[c.headers[i]] = cellValue(c.headers[i], cell)
	}
	return e
}

// cellValue types a cell the way a JSON document would carry it. Lists of
// modulations are written as "1|3".
func cellValue(header, cell string) any {
	if strings.HasPrefix(header, tp.DeclaringSegmentationPrefix) || strings.HasPrefix(header, tp.CounterpartSegmentationPrefix) {
		return cell
	}
	if header == FieldModulation {
		parts := strings.Split(cell, "|")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, cellValue("", strings.TrimSpace(p)))
		}
		return list
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	if _, err := decimal.NewFromString(cell); err == nil {
		return json.Number(cell)
	}
	return cell
}

// ReadCSV reads a whole CSV document into raw entries.
func ReadCSV(r io.Reader, opts ...CSVOption) ([]map[string]any, error) {
	c, err := NewCSVReader(r, opts...)
	if err != nil {
		return nil, err
	}
	return c.ReadAll()
}
