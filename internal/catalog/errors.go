package catalog

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes reported by Load and Validate.
const (
	ErrCodeGeneric     = "E001" // generic or unknown error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build or schema unification failed

	ErrCodeInvalidTime        = "E201" // period bound is not RFC 3339
	ErrCodeInvalidRange       = "E202" // period ends before it starts
	ErrCodeDuplicateID        = "E203" // two entries share an id
	ErrCodeInvalidDefinition  = "E204" // definition fails its own validation
	ErrCodeDuplicatePlatinum  = "E205" // more than one active platinum definition
)

// CompileError is a catalog error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error, code string) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: code, Field: "cue", Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	ce := &CompileError{Code: code, Field: "cue", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ce.Field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
