package epubmeta

import (
	"errors"
	"fmt"
)

// ErrNoCover is returned by Cover when the book declares no cover image.
var ErrNoCover = errors.New("no cover image declared")

// ParseError is returned when the EPUB container or package document is
// structurally invalid.
type ParseError struct {
	Path   string
	Part   string // Context: what was being parsed
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Path, e.Part, e.Reason)
}
