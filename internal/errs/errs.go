// Package errs defines the error types a build can fail with.
// Every one of them is fatal to the run.
package errs

import (
	"errors"
	"fmt"
)

// PatternError reports a malformed input pattern or frame number.
type PatternError struct {
	Pattern string
	Path    string
	Reason  string
}

func (e *PatternError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("pattern %q: %s: %s", e.Pattern, e.Path, e.Reason)
	}
	return fmt.Sprintf("pattern %q: %s", e.Pattern, e.Reason)
}

// ParseError reports a malformed or unsupported mesh file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports an attribute whose element type changes within a sequence.
type SchemaError struct {
	Sequence  string
	Attribute string
	Frame     int
	Want      string
	Got       string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sequence %q frame %d: attribute %q is %s, earlier frames have %s",
		e.Sequence, e.Frame, e.Attribute, e.Got, e.Want)
}

// MaterialError reports a material id with no entry in the material table.
type MaterialError struct {
	Sequence string
	Frame    int
	ID       uint32
}

func (e *MaterialError) Error() string {
	return fmt.Sprintf("sequence %q frame %d: material id %d is not in the material table",
		e.Sequence, e.Frame, e.ID)
}

// AssemblyError reports an inconsistent document index. It indicates a bug.
type AssemblyError struct {
	What  string
	Index int
	Len   int
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly: %s index %d out of range (have %d)", e.What, e.Index, e.Len)
}

// IOError reports a filesystem, texture or output failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Kind names the class of the first taxonomy error in err's chain,
// or "error" when there is none. Used as a metrics label.
func Kind(err error) string {
	var (
		pe *PatternError
		xe *ParseError
		se *SchemaError
		me *MaterialError
		ae *AssemblyError
		ie *IOError
	)
	switch {
	case errors.As(err, &pe):
		return "pattern"
	case errors.As(err, &xe):
		return "parse"
	case errors.As(err, &se):
		return "schema"
	case errors.As(err, &me):
		return "material"
	case errors.As(err, &ae):
		return "assembly"
	case errors.As(err, &ie):
		return "io"
	}
	return "error"
}
