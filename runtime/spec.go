package runtime

import (
	"strings"
	"sync"

	"github.com/coreos/go-semver/semver"

	"github.com/wippyai/ffi-runtime/engine"
	"github.com/wippyai/ffi-runtime/errors"
)

// LibrarySpec names a native library to open.
//
// The zero spec (and nil) addresses the current process: symbols
// already linked into the running binary.
type LibrarySpec struct {
	// Name is a bare library name ("m", "sqlite3"), a file name
	// ("libm.so.6"), or a path. Bare names expand into platform
	// candidates; anything path-like is opened verbatim.
	Name string

	// Version narrows bare-name resolution. Partial versions are
	// fine: "6", "3.45", "16.43.0" all work, and more specific
	// candidates are tried first. Ignored when Name is path-like.
	Version string

	// Resolver, when set, supplies the library path at open time
	// and overrides Name/Version resolution. It runs at most once
	// per spec; the result is cached, including failure.
	Resolver func() (string, error)

	resolveOnce sync.Once
	resolved    string
	resolveErr  error
}

// CurrentProcess addresses the host process itself.
var CurrentProcess = &LibrarySpec{}

// isCurrent reports whether the spec addresses the running process
// rather than a library on disk.
func (s *LibrarySpec) isCurrent() bool {
	return s == nil || (s.Name == "" && s.Resolver == nil)
}

// candidates expands the spec into the ordered list of paths to try.
func (s *LibrarySpec) candidates() ([]string, error) {
	if s.Resolver != nil {
		s.resolveOnce.Do(func() {
			s.resolved, s.resolveErr = s.Resolver()
		})
		if s.resolveErr != nil {
			return nil, errors.LibraryNotFound(s.label(), s.resolveErr)
		}
		if s.resolved == "" {
			return nil, errors.InvalidInput(errors.PhaseResolve, "resolver returned an empty path")
		}
		return []string{s.resolved}, nil
	}

	if s.Version != "" && !engine.IsLibraryPath(s.Name) {
		if err := checkVersion(s.Version); err != nil {
			return nil, err
		}
	}
	return engine.LibraryCandidates(s.Name, s.Version), nil
}

// label names the spec in errors.
func (s *LibrarySpec) label() string {
	switch {
	case s == nil:
		return "current process"
	case s.Name != "":
		return s.Name
	case s.Resolver != nil:
		return "resolver"
	default:
		return "current process"
	}
}

// checkVersion gates obviously malformed version strings. Partial
// forms are completed to full semver before parsing; the original
// precision still drives candidate generation.
func checkVersion(v string) error {
	full := v
	switch strings.Count(v, ".") {
	case 0:
		full += ".0.0"
	case 1:
		full += ".0"
	}
	if _, err := semver.NewVersion(full); err != nil {
		return errors.New(errors.PhaseResolve, errors.KindInvalidInput).
			Value(v).
			Cause(err).
			Detail("invalid library version %q", v).
			Build()
	}
	return nil
}
