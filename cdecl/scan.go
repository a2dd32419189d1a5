package cdecl

import (
	"strings"
	"unicode"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokPunct
	tokEllipsis
)

type token struct {
	value string
	kind  tokKind
	line  int
}

// scan splits declaration text into tokens, stripping comments and
// tracking line numbers for diagnostics. Unknown characters are
// errors, not skips: the input is user-written text.
func scan(src string) ([]token, error) {
	var toks []token
	line := 1
	runes := []rune(src)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			line++
			continue
		}

		// Block comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			i += 2
			closed := false
			for i < len(runes) {
				if runes[i] == '\n' {
					line++
				} else if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, parseErr(line, "unterminated block comment")
			}
			continue
		}

		if r == '.' {
			if i+2 < len(runes) && runes[i+1] == '.' && runes[i+2] == '.' {
				toks = append(toks, token{"...", tokEllipsis, line})
				i += 2
				continue
			}
			return nil, parseErr(line, "unexpected character '.'")
		}

		if strings.ContainsRune("*;,@(){}[]", r) {
			toks = append(toks, token{string(r), tokPunct, line})
			continue
		}

		if unicode.IsDigit(r) {
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			toks = append(toks, token{string(runes[start:i]), tokNumber, line})
			i--
			continue
		}

		if r == '_' || unicode.IsLetter(r) {
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			toks = append(toks, token{string(runes[start:i]), tokIdent, line})
			i--
			continue
		}

		return nil, parseErr(line, "unexpected character %q", r)
	}

	return toks, nil
}
