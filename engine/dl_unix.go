//go:build darwin || freebsd || linux

package engine

import "github.com/ebitengine/purego"

func dlOpen(path string, mode LoadMode) (uintptr, error) {
	return purego.Dlopen(path, dlMode(mode))
}

func dlSym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func dlClose(handle uintptr) error {
	return purego.Dlclose(handle)
}

// dlCurrentProcess returns the pseudo-handle dlsym uses to search the
// global symbol scope. On linux this is numerically zero.
func dlCurrentProcess() uintptr {
	return purego.RTLD_DEFAULT
}

func dlMode(mode LoadMode) int {
	var m int
	if mode&BindLazy != 0 {
		m |= purego.RTLD_LAZY
	} else {
		m |= purego.RTLD_NOW
	}
	if mode&ScopeLocal != 0 {
		m |= purego.RTLD_LOCAL
	} else {
		m |= purego.RTLD_GLOBAL
	}
	return m
}
