// Package config implements the curly-brace configuration front-end and the
// generic configuration tree that the merge engine operates on.
package config

import (
	"fmt"
	"strings"
)

// TokenType classifies a lexeme.
type TokenType int

const (
	TokenLBrace TokenType = iota
	TokenRBrace
	TokenSemicolon
	TokenLBracket
	TokenRBracket
	TokenIdentifier
	TokenString
	TokenEOF
	TokenError
)

var tokenNames = [...]string{
	TokenLBrace:     "'{'",
	TokenRBrace:     "'}'",
	TokenSemicolon:  "';'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenIdentifier: "identifier",
	TokenString:     "string",
	TokenEOF:        "EOF",
	TokenError:      "error",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "unknown"
}

// punct maps single-byte delimiters to their token type. Brackets are
// tokens of their own so "[ ]" is distinct from a missing value.
var punct = map[byte]TokenType{
	'{': TokenLBrace,
	'}': TokenRBrace,
	';': TokenSemicolon,
	'[': TokenLBracket,
	']': TokenRBracket,
}

// Token is one lexeme with the position of its first byte.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	if t.IsWord() {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// IsWord reports whether the token can be part of a statement's keys.
func (t Token) IsWord() bool {
	return t.Type == TokenIdentifier || t.Type == TokenString
}

// Lexer splits configuration text into tokens. Comments ("#", "//" and
// "/* */") and whitespace are dropped.
type Lexer struct {
	src       string
	off       int
	line, col int
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Next consumes and returns one token. At end of input it keeps
// returning TokenEOF.
func (l *Lexer) Next() Token {
	l.skipBlank()
	tok := Token{Line: l.line, Column: l.col}
	if l.eof() {
		tok.Type = TokenEOF
		return tok
	}

	c := l.src[l.off]
	if t, ok := punct[c]; ok {
		l.step()
		tok.Type, tok.Value = t, string(c)
		return tok
	}
	switch {
	case c == '"':
		return l.quoted(tok)
	case isIdentChar(c):
		start := l.off
		for !l.eof() && isIdentChar(l.src[l.off]) {
			l.step()
		}
		tok.Type, tok.Value = TokenIdentifier, l.src[start:l.off]
		return tok
	}
	l.step()
	tok.Type, tok.Value = TokenError, fmt.Sprintf("unexpected character: %c", c)
	return tok
}

// Peek returns what Next would return without consuming it.
func (l *Lexer) Peek() Token {
	saved := *l
	tok := l.Next()
	*l = saved
	return tok
}

func (l *Lexer) eof() bool { return l.off >= len(l.src) }

func (l *Lexer) at(s string) bool { return strings.HasPrefix(l.src[l.off:], s) }

func (l *Lexer) step() {
	if l.eof() {
		return
	}
	if l.src[l.off] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.off++
}

func (l *Lexer) skipBlank() {
	for !l.eof() {
		switch {
		case strings.IndexByte(" \t\r\n", l.src[l.off]) >= 0:
			l.step()
		case l.at("#"), l.at("//"):
			for !l.eof() && l.src[l.off] != '\n' {
				l.step()
			}
		case l.at("/*"):
			l.step()
			l.step()
			for !l.eof() && !l.at("*/") {
				l.step()
			}
			// An unclosed block comment runs to end of input.
			l.step()
			l.step()
		default:
			return
		}
	}
}

// quoted reads a double-quoted string. \" \\ and \n are unescaped; any
// other backslash pair is kept verbatim.
func (l *Lexer) quoted(tok Token) Token {
	l.step()
	var b strings.Builder
	for !l.eof() {
		c := l.src[l.off]
		l.step()
		switch {
		case c == '"':
			tok.Type, tok.Value = TokenString, b.String()
			return tok
		case c == '\\' && !l.eof():
			e := l.src[l.off]
			l.step()
			switch e {
			case '"', '\\':
				b.WriteByte(e)
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	tok.Type, tok.Value = TokenError, "unterminated string"
	return tok
}

// isIdentChar covers bare words in this grammar: names, prefixes such as
// 10.0.1.0/24, IPv6 literals and verb prefixes like "replace:".
func isIdentChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_./:*+", c) >= 0
}
