package transcoder

import (
	"strconv"

	"github.com/wippyai/ffi-runtime/errors"
)

// notePath prepends a path element to a structured error as the
// recursion unwinds. Paths are materialized only on the error path;
// successful encodes and decodes never allocate for them.
func notePath(err error, elem string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{elem}, e.Path...)
		return e
	}
	return err
}

// noteIndex is notePath for array elements.
func noteIndex(err error, index int) error {
	return notePath(err, "["+strconv.Itoa(index)+"]")
}
