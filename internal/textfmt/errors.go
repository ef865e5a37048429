package textfmt

import (
	"fmt"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/source"
)

// DecodeError is the sticky error of a strict decode session.
type DecodeError struct {
	Code diag.Code
	Span source.Span
	Line int // 1-based record line in the input, 0 for the header check
	Msg  string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Code.ID(), e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code.ID(), e.Msg)
}

// Category returns the coarse error class.
func (e *DecodeError) Category() diag.Category { return e.Code.Category() }

// Is matches the category sentinels, so callers can write
// errors.Is(err, textfmt.ErrTrailingData).
func (e *DecodeError) Is(target error) bool {
	c, ok := target.(*categoryError)
	return ok && c.cat == e.Category()
}

type categoryError struct{ cat diag.Category }

func (c *categoryError) Error() string { return "textfmt: " + c.cat.String() }

var (
	ErrMalformedToken      error = &categoryError{diag.CatMalformedToken}
	ErrOutOfRangeReference error = &categoryError{diag.CatOutOfRangeReference}
	ErrUnknownRecordKind   error = &categoryError{diag.CatUnknownRecordKind}
	ErrTrailingData        error = &categoryError{diag.CatTrailingData}
	ErrVersionMismatch     error = &categoryError{diag.CatVersionMismatch}
)
