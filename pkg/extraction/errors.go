package extraction

import (
	"fmt"
	"strings"

	"github.com/gitsby/yarg/pkg/models/domain"
)

type MissingLinkFieldError struct {
	Field string
	Band  string
}

func (e *MissingLinkFieldError) Error() string {
	return fmt.Sprintf("band %s: link field %q is missing from the parent row", e.Band, e.Field)
}

type MissingParameterError struct {
	Name string
	Band string // empty for report parameters
}

func (e *MissingParameterError) Error() string {
	if e.Band == "" {
		return fmt.Sprintf("required report parameter %q is not set", e.Name)
	}
	return fmt.Sprintf("band %s: parameter %q is not set", e.Band, e.Name)
}

type CardinalityError struct {
	Band string
	Rows int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("band %s: simple band expects exactly one row, got %d", e.Band, e.Rows)
}

type UnknownOrientationError struct {
	Orientation domain.Orientation
}

func (e *UnknownOrientationError) Error() string {
	return fmt.Sprintf("unknown band orientation %q", e.Orientation)
}

// BandError locates a failure in the band definition tree.
type BandError struct {
	Path []string
	Err  error
}

func (e *BandError) Error() string {
	return fmt.Sprintf("extract %s: %v", strings.Join(e.Path, "/"), e.Err)
}

func (e *BandError) Unwrap() error {
	return e.Err
}
