package engine

import (
	"path/filepath"
	"runtime"
	"strings"
)

// LibraryCandidates returns the file names to try, in order, when a
// library is requested by bare name. Bare names gain the platform
// prefix and suffix; versioned candidates come first, most specific
// first, with the unversioned name as the final fallback.
//
// Examples on linux:
//
//	LibraryCandidates("m", "")          -> ["libm.so"]
//	LibraryCandidates("m", "6")         -> ["libm.so.6", "libm.so"]
//	LibraryCandidates("png", "16.43.0") -> ["libpng.so.16.43.0", "libpng.so.16.43", "libpng.so.16", "libpng.so"]
//
// Names that are already paths or already carry a library extension
// pass through as the single candidate, version ignored.
func LibraryCandidates(name, version string) []string {
	return candidatesFor(runtime.GOOS, name, version)
}

// IsLibraryPath reports whether name is a concrete file reference
// rather than a bare library name: it contains a path separator or
// already ends in a platform library extension.
func IsLibraryPath(name string) bool {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return true
	}
	return hasLibraryExt(name)
}

func hasLibraryExt(name string) bool {
	if strings.HasSuffix(name, ".so") || strings.Contains(name, ".so.") {
		return true
	}
	return strings.HasSuffix(name, ".dylib") || strings.HasSuffix(name, ".dll")
}

func candidatesFor(goos, name, version string) []string {
	if name == "" {
		return nil
	}
	if IsLibraryPath(name) {
		return []string{name}
	}

	steps := versionSteps(version)

	switch goos {
	case "darwin":
		base := withLibPrefix(name)
		out := make([]string, 0, len(steps)+1)
		for _, v := range steps {
			out = append(out, base+"."+v+".dylib")
		}
		return append(out, base+".dylib")
	case "windows":
		// DLL names carry no version convention worth guessing.
		return []string{name + ".dll"}
	default:
		// ELF platforms: linux, freebsd and friends.
		base := withLibPrefix(name) + ".so"
		out := make([]string, 0, len(steps)+1)
		for _, v := range steps {
			out = append(out, base+"."+v)
		}
		return append(out, base)
	}
}

// withLibPrefix never strips: a name that already starts with "lib"
// is taken as already prefixed.
func withLibPrefix(name string) string {
	if strings.HasPrefix(name, "lib") {
		return name
	}
	return "lib" + name
}

// versionSteps expands a dotted version into candidates from most to
// least specific: "16.43.0" -> ["16.43.0", "16.43", "16"].
func versionSteps(version string) []string {
	if version == "" {
		return nil
	}
	steps := []string{version}
	for {
		dot := strings.LastIndexByte(version, '.')
		if dot < 0 {
			break
		}
		version = version[:dot]
		steps = append(steps, version)
	}
	return steps
}
