package config

import (
	"fmt"
	"strings"
)

// ParseError is a syntax error in configuration text.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Parser builds a configuration tree from curly-brace text.
type Parser struct {
	lex    *Lexer
	tok    Token
	errors []error
}

// NewParser creates a parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lex: NewLexer(input)}
	p.tok = p.lex.Next()
	return p
}

// Parse parses the whole input and returns the root node plus every syntax
// error encountered. After an error the parser resynchronizes at the next
// ';' or '}' and keeps going, so the returned tree may be partial.
func (p *Parser) Parse() (*Node, []error) {
	root := NewTree()
	root.Children = p.parseStatements(treeSchema, true)
	return root, p.errors
}

// Parse is a convenience wrapper returning the first error only.
func Parse(input string) (*Node, error) {
	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return tree, nil
}

func (p *Parser) next() {
	p.tok = p.lex.Next()
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Line:   tok.Line,
		Column: tok.Column,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// parseStatements reads statements until '}' (consumed by the caller) or EOF.
func (p *Parser) parseStatements(schema *schemaNode, top bool) []*Node {
	var nodes []*Node
	for {
		switch p.tok.Type {
		case TokenEOF:
			return nodes
		case TokenRBrace:
			if top {
				p.errorf(p.tok, "unexpected %s", p.tok.Type)
				p.next()
				continue
			}
			return nodes
		case TokenIdentifier, TokenString:
			if n := p.parseStatement(schema); n != nil {
				nodes = append(nodes, n)
			}
		case TokenError:
			p.errorf(p.tok, "%s", p.tok.Value)
			p.next()
		default:
			p.errorf(p.tok, "unexpected %s", p.tok.Type)
			p.next()
		}
	}
}

func (p *Parser) parseStatement(schema *schemaNode) *Node {
	start := p.tok
	verb := p.parseVerb()

	var words []string
	for p.tok.IsWord() {
		words = append(words, p.tok.Value)
		p.next()
	}
	if len(words) == 0 {
		p.errorf(p.tok, "expected statement after %s:", verb)
		p.recover()
		return nil
	}

	child := schema.child(words[0])
	n := &Node{
		Keyword: words[0],
		Verb:    verb,
		Line:    start.Line,
		Column:  start.Column,
	}

	switch p.tok.Type {
	case TokenLBrace:
		p.next()
		n.Kind = KindStanza
		n.Name, _ = splitName(child, words[1:], true)
		if n.Name != "" {
			n.Kind = KindKeyedBlock
		}
		n.Children = p.parseStatements(child, false)
		if p.tok.Type != TokenRBrace {
			p.errorf(p.tok, "expected '}' to close %q", n.Label())
			return n
		}
		p.next()
		return n

	case TokenLBracket:
		bracket := p.tok
		p.next()
		values := []string{}
		for p.tok.IsWord() {
			values = append(values, p.tok.Value)
			p.next()
		}
		if p.tok.Type != TokenRBracket {
			p.errorf(p.tok, "expected ']' to close list opened at line %d", bracket.Line)
			p.recover()
			return nil
		}
		p.next()
		if !p.expectSemicolon(n) {
			return nil
		}
		n.Kind = KindLeafSet
		if child != nil && child.list {
			n.Kind = KindList
		}
		n.Name, _ = splitName(child, words[1:], true)
		n.Values = values
		return n

	case TokenSemicolon:
		p.next()
		name, rest := splitName(child, words[1:], false)
		n.Name = name
		switch {
		case child != nil && (child.set || child.list) && len(rest) > 0:
			n.Kind = KindLeafSet
			if child.list {
				n.Kind = KindList
			}
			n.Values = rest
		default:
			n.Kind = KindLeafScalar
			n.Value = strings.Join(rest, " ")
		}
		return n

	default:
		p.errorf(p.tok, "unexpected %s after %q", p.tok.Type, strings.Join(words, " "))
		p.recover()
		return nil
	}
}

// parseVerb consumes a "replace:" / "delete:" prefix if present. The colon
// may be attached to the keyword or stand alone.
func (p *Parser) parseVerb() Verb {
	if p.tok.Type != TokenIdentifier {
		return VerbMerge
	}
	var verb Verb
	switch strings.TrimSuffix(p.tok.Value, ":") {
	case "replace":
		verb = VerbReplace
	case "delete":
		verb = VerbDelete
	default:
		return VerbMerge
	}
	if strings.HasSuffix(p.tok.Value, ":") {
		p.next()
		return verb
	}
	if next := p.lex.Peek(); next.Type == TokenIdentifier && next.Value == ":" {
		p.next()
		p.next()
		return verb
	}
	return VerbMerge
}

func (p *Parser) expectSemicolon(n *Node) bool {
	if p.tok.Type != TokenSemicolon {
		p.errorf(p.tok, "expected ';' after %q", n.Keyword)
		p.recover()
		return false
	}
	p.next()
	return true
}

// recover skips to just past the next ';', or to the next '}' or EOF.
func (p *Parser) recover() {
	for {
		switch p.tok.Type {
		case TokenEOF, TokenRBrace:
			return
		case TokenSemicolon:
			p.next()
			return
		}
		p.next()
	}
}

// splitName divides the tokens after a keyword into the node name and the
// remaining value tokens. Without schema guidance a block uses every token
// as its name and a leaf uses every token as its value.
func splitName(schema *schemaNode, rest []string, block bool) (string, []string) {
	if schema == nil || schema.args == 0 {
		if block {
			return strings.Join(rest, " "), nil
		}
		return "", rest
	}
	n := schema.args
	if n > len(rest) {
		n = len(rest)
	}
	name := strings.Join(rest[:n], " ")
	if block && n < len(rest) {
		name = strings.Join(rest, " ")
		return name, nil
	}
	return name, rest[n:]
}
