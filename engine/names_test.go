package engine

import (
	"strings"
	"testing"
)

func TestLibraryCandidatesLinux(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected []string
	}{
		{"m", "", []string{"libm.so"}},
		{"m", "6", []string{"libm.so.6", "libm.so"}},
		{"png", "16.43.0", []string{"libpng.so.16.43.0", "libpng.so.16.43", "libpng.so.16", "libpng.so"}},
		{"libm", "", []string{"libm.so"}},
		{"json-c", "5", []string{"libjson-c.so.5", "libjson-c.so"}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.version, func(t *testing.T) {
			result := candidatesFor("linux", tt.name, tt.version)
			assertCandidates(t, result, tt.expected)
		})
	}
}

func TestLibraryCandidatesDarwin(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected []string
	}{
		{"m", "", []string{"libm.dylib"}},
		{"ssl", "3", []string{"libssl.3.dylib", "libssl.dylib"}},
		{"ssl", "3.2", []string{"libssl.3.2.dylib", "libssl.3.dylib", "libssl.dylib"}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.version, func(t *testing.T) {
			result := candidatesFor("darwin", tt.name, tt.version)
			assertCandidates(t, result, tt.expected)
		})
	}
}

func TestLibraryCandidatesWindows(t *testing.T) {
	result := candidatesFor("windows", "sqlite3", "3.45")
	assertCandidates(t, result, []string{"sqlite3.dll"})
}

func TestLibraryCandidatesFreeBSDUsesELFNaming(t *testing.T) {
	result := candidatesFor("freebsd", "c", "7")
	assertCandidates(t, result, []string{"libc.so.7", "libc.so"})
}

func TestLibraryCandidatesPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"absolute path", "/usr/lib/x86_64-linux-gnu/libm.so.6"},
		{"relative path", "./build/libfoo.so"},
		{"soname", "libm.so.6"},
		{"plain so", "libm.so"},
		{"dylib", "libSystem.dylib"},
		{"dll", "kernel32.dll"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := candidatesFor("linux", tt.input, "9.9")
			assertCandidates(t, result, []string{tt.input})
		})
	}
}

func TestLibraryCandidatesEmptyName(t *testing.T) {
	if got := candidatesFor("linux", "", "1"); got != nil {
		t.Errorf("candidatesFor(\"\") = %v, want nil", got)
	}
}

func TestIsLibraryPath(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"m", false},
		{"sqlite3", false},
		{"libm.so", true},
		{"libm.so.6", true},
		{"libssl.dylib", true},
		{"user32.dll", true},
		{"/lib64/libc.so.6", true},
		{"./libfoo", true},
		{"json-c", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsLibraryPath(tt.input); got != tt.expected {
				t.Errorf("IsLibraryPath(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestVersionSteps(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"6", []string{"6"}},
		{"3.2", []string{"3.2", "3"}},
		{"16.43.0", []string{"16.43.0", "16.43", "16"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assertCandidates(t, versionSteps(tt.input), tt.expected)
		})
	}
}

func assertCandidates(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d candidates [%s], want %d [%s]",
			len(got), strings.Join(got, ", "), len(want), strings.Join(want, ", "))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
