package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// Token kinds produced by the text lexer. The same lexer serves the text
// and JSON dialects; commas are treated as padding between tokens, which
// makes the reader lenient about separator style.
type tokenKind uint8

const (
	tkEOF tokenKind = iota
	tkPunct
	tkString
	tkBare
	tkTag
	tkNullTag
	tkBinaryTag
)

type token struct {
	kind tokenKind
	ch   byte
	text string
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// isBareChar accepts the characters a bare token may contain. The set
// covers identifiers, dotted names, and every rune a formatted number can
// produce, sign and exponent included.
func isBareChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-' || c == '+':
		return true
	}
	return false
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

// bareSafe reports whether s can be emitted without quotes and read back as
// the same string: it must look like an identifier, not a keyword, and not
// anything the number classifier would claim.
func bareSafe(s string) bool {
	if s == "" || !isLetter(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isBareChar(c) || c == '+' {
			return false
		}
	}
	switch s {
	case "true", "false", "null":
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	return true
}

// quoteText renders s as a double-quoted string with the shared escape set.
func quoteText(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(sb, `\u%04x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}

// lexer walks a byte store's read cursor producing tokens.
type lexer struct {
	buf *bytestore.Buffer
}

// skipPadding consumes whitespace and commas.
func (l *lexer) skipPadding() {
	for {
		c, err := l.buf.PeekByte()
		if err != nil {
			return
		}
		if !isSpace(c) && c != ',' {
			return
		}
		_, _ = l.buf.ReadByte()
	}
}

// peekByte returns the byte the next token starts with, after padding, or
// 0 at end of input.
func (l *lexer) peekByte() byte {
	l.skipPadding()
	c, err := l.buf.PeekByte()
	if err != nil {
		return 0
	}
	return c
}

func (l *lexer) next() (token, error) {
	l.skipPadding()
	c, err := l.buf.PeekByte()
	if err != nil {
		return token{kind: tkEOF}, nil
	}
	switch c {
	case '{', '}', '[', ']', ':':
		_, _ = l.buf.ReadByte()
		return token{kind: tkPunct, ch: c}, nil
	case '"':
		s, err := l.readQuoted()
		if err != nil {
			return token{}, err
		}
		return token{kind: tkString, text: s}, nil
	case '!':
		_, _ = l.buf.ReadByte()
		if n, err := l.buf.PeekByte(); err == nil && n == '!' {
			_, _ = l.buf.ReadByte()
			name := l.readBare()
			switch name {
			case "null":
				return token{kind: tkNullTag}, nil
			case "binary":
				return token{kind: tkBinaryTag}, nil
			}
			return token{}, fmt.Errorf("%w: unknown tag !!%s", ErrSyntax, name)
		}
		name := l.readBare()
		if name == "" {
			return token{}, fmt.Errorf("%w: bare '!'", ErrSyntax)
		}
		return token{kind: tkTag, text: name}, nil
	}
	s := l.readBare()
	if s == "" {
		return token{}, fmt.Errorf("%w: unexpected byte %q", ErrSyntax, c)
	}
	return token{kind: tkBare, text: s}, nil
}

func (l *lexer) readBare() string {
	var sb strings.Builder
	for {
		c, err := l.buf.PeekByte()
		if err != nil || !isBareChar(c) {
			return sb.String()
		}
		_, _ = l.buf.ReadByte()
		sb.WriteByte(c)
	}
}

func (l *lexer) readQuoted() (string, error) {
	if c, err := l.buf.ReadByte(); err != nil || c != '"' {
		return "", fmt.Errorf("%w: expected opening quote", ErrSyntax)
	}
	var sb strings.Builder
	for {
		c, err := l.buf.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: unterminated string", ErrSyntax)
		}
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			e, err := l.buf.ReadByte()
			if err != nil {
				return "", fmt.Errorf("%w: unterminated escape", ErrSyntax)
			}
			switch e {
			case '"', '\\', '/':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'u':
				hexDigits, err := l.buf.ReadBytes(4)
				if err != nil {
					return "", fmt.Errorf("%w: short unicode escape", ErrSyntax)
				}
				n, err := strconv.ParseUint(string(hexDigits), 16, 32)
				if err != nil {
					return "", fmt.Errorf("%w: bad unicode escape %q", ErrSyntax, hexDigits)
				}
				sb.WriteRune(rune(n))
			default:
				return "", fmt.Errorf("%w: unknown escape \\%c", ErrSyntax, e)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

// expectPunct consumes the given punctuation byte or fails.
func (l *lexer) expectPunct(ch byte) error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != tkPunct || tok.ch != ch {
		return fmt.Errorf("%w: expected %q", ErrSyntax, ch)
	}
	return nil
}
