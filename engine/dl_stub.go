//go:build !(darwin || freebsd || linux)

package engine

import (
	"runtime"

	"github.com/wippyai/ffi-runtime/errors"
)

func dlOpen(path string, mode LoadMode) (uintptr, error) {
	return 0, errors.Unsupported(errors.PhaseLoad, "dynamic loading on "+runtime.GOOS)
}

func dlSym(handle uintptr, name string) (uintptr, error) {
	return 0, errors.Unsupported(errors.PhaseResolve, "symbol lookup on "+runtime.GOOS)
}

func dlClose(handle uintptr) error {
	return errors.Unsupported(errors.PhaseLoad, "dynamic loading on "+runtime.GOOS)
}

func dlCurrentProcess() uintptr {
	return 0
}
