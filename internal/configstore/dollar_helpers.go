package configstore

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Users write `\$` inside double-quoted values to keep a literal dollar, which
// TOML does not accept as an escape. When decoding fails on exactly that,
// sanitizeDollarEscapes doubles the backslash inside basic strings and the
// decode is retried. expandConfigValue later turns `\$` back into `$` after
// environment expansion.

type quoteState int

const (
	outsideString quoteState = iota
	inBasic
	inBasicMultiline
	inLiteral
	inLiteralMultiline
)

func needsDollarEscapeFix(err error) bool {
	var decodeErr *toml.DecodeError
	if !errors.As(err, &decodeErr) {
		return false
	}
	return strings.Contains(decodeErr.Error(), "invalid escaped character U+0024 '$'")
}

func tripleAt(data []byte, i int, q byte) bool {
	return i+2 < len(data) && data[i] == q && data[i+1] == q && data[i+2] == q
}

func sanitizeDollarEscapes(data []byte) ([]byte, bool) {
	if !bytes.Contains(data, []byte(`\$`)) {
		return data, false
	}

	var out bytes.Buffer
	out.Grow(len(data) + 16)
	state := outsideString
	modified := false

	for i := 0; i < len(data); i++ {
		ch := data[i]
		switch state {
		case outsideString:
			switch {
			case tripleAt(data, i, '"'):
				out.WriteString(`"""`)
				i += 2
				state = inBasicMultiline
			case ch == '"':
				out.WriteByte(ch)
				state = inBasic
			case tripleAt(data, i, '\''):
				out.WriteString(`'''`)
				i += 2
				state = inLiteralMultiline
			case ch == '\'':
				out.WriteByte(ch)
				state = inLiteral
			default:
				out.WriteByte(ch)
			}
		case inLiteral:
			out.WriteByte(ch)
			if ch == '\'' {
				state = outsideString
			}
		case inLiteralMultiline:
			if tripleAt(data, i, '\'') {
				out.WriteString(`'''`)
				i += 2
				state = outsideString
				continue
			}
			out.WriteByte(ch)
		case inBasic, inBasicMultiline:
			if ch == '\\' && i+1 < len(data) {
				next := data[i+1]
				out.WriteByte('\\')
				if next == '$' {
					out.WriteByte('\\')
					modified = true
				}
				out.WriteByte(next)
				i++
				continue
			}
			if state == inBasicMultiline && tripleAt(data, i, '"') {
				out.WriteString(`"""`)
				i += 2
				state = outsideString
				continue
			}
			out.WriteByte(ch)
			if state == inBasic && ch == '"' {
				state = outsideString
			}
		}
	}

	if !modified {
		return data, false
	}
	return out.Bytes(), true
}

const escapedDollar = "\x00PARAMREF_DOLLAR\x00"

// expandConfigValue expands $VAR and ${VAR} from the process environment and
// keeps `\$` as a literal dollar.
func expandConfigValue(raw string) string {
	if raw == "" {
		return ""
	}
	protected := strings.ReplaceAll(raw, `\$`, escapedDollar)
	expanded := os.Expand(protected, os.Getenv)
	return strings.ReplaceAll(expanded, escapedDollar, "$")
}
