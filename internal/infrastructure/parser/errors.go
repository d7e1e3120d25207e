// Package parser turns loosely typed input documents into records, rules
// and exchange-rate tables. Optional fields of the wrong type are dropped;
// segmentation attributes of the wrong type reject the whole document.
package parser

import (
	"fmt"

	"github.com/tpa/backend/internal/domain/shared"
)

// Parse error codes
const (
	ErrCodeSegmentationType = "ERR_PARSE_SEGMENTATION_TYPE"
	ErrCodeSegmentationKey  = "ERR_PARSE_SEGMENTATION_KEY"
	ErrCodeNotAnArray       = "ERR_PARSE_NOT_AN_ARRAY"
	ErrCodeInvalidRates     = "ERR_PARSE_INVALID_RATES"
	ErrCodeInvalidCSV       = "ERR_PARSE_INVALID_CSV"
)

var (
	// ErrEmptyFile is returned when a CSV document has no content
	ErrEmptyFile = fmt.Errorf("%w: CSV file is empty", shared.ErrInvalidInput)

	// ErrInvalidEncoding is returned when a CSV document is not UTF-8
	ErrInvalidEncoding = fmt.Errorf("%w: invalid file encoding", shared.ErrInvalidInput)

	// ErrMissingHeader is returned when a CSV document has no header row
	ErrMissingHeader = fmt.Errorf("%w: CSV file missing header row", shared.ErrInvalidInput)
)

// FieldError locates a parse failure. Row is zero-based; -1 when the
// failure is not tied to a row.
type FieldError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *FieldError) Error() string {
	switch {
	case e.Row < 0:
		return e.Message
	case e.Field != "":
		return fmt.Sprintf("row %d, field '%s': %s", e.Row, e.Field, e.Message)
	default:
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
}

// Unwrap makes every parse failure an invalid input
func (e *FieldError) Unwrap() error {
	return shared.ErrInvalidInput
}

func fieldError(row int, field, code, format string, args ...any) *FieldError {
	return &FieldError{Row: row, Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}
