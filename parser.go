package rhema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type parser struct {
	input []rune
	pos   int
}

// Parse reads a single expression and returns the corresponding term.
// Trailing input is an error.
func Parse(input string) (Term, error) {
	p := &parser{input: []rune(input), pos: 0}
	p.skipWhitespace()
	if p.pos >= len(p.input) {
		return Term{}, fmt.Errorf("empty input")
	}
	t, err := p.parseTerm()
	if err != nil {
		return Term{}, err
	}
	p.skipWhitespace()
	if p.pos < len(p.input) {
		return Term{}, fmt.Errorf("unexpected input after expression at position %d", p.pos)
	}
	return t, nil
}

// ParseAll reads every expression in the input, for files and REPL
// lines holding more than one form.
func ParseAll(input string) ([]Term, error) {
	p := &parser{input: []rune(input), pos: 0}
	var terms []Term
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return terms, nil
		}
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
}

func (p *parser) parseTerm() (Term, error) {
	if p.pos >= len(p.input) {
		return Term{}, fmt.Errorf("unexpected end of input")
	}
	ch := p.input[p.pos]
	switch {
	case ch == '\'':
		return p.parseQuote()
	case ch == '(':
		return p.parseBranch()
	case ch == '"':
		return p.parseString()
	default:
		return p.parseAtom()
	}
}

func (p *parser) parseQuote() (Term, error) {
	p.pos++ // skip '\''
	inner, err := p.parseTerm()
	if err != nil {
		return Term{}, err
	}
	return BranchTerm(SymTerm(symQuote), inner), nil
}

func (p *parser) parseBranch() (Term, error) {
	start := p.pos
	p.pos++ // skip '('
	var subs []Term
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return Term{}, fmt.Errorf("unclosed list at position %d", start)
		}
		if p.input[p.pos] == ')' {
			p.pos++ // skip ')'
			return BranchTerm(subs...), nil
		}
		sub, err := p.parseTerm()
		if err != nil {
			return Term{}, err
		}
		subs = append(subs, sub)
	}
}

func (p *parser) parseString() (Term, error) {
	start := p.pos
	p.pos++ // skip opening '"'
	var buf strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == '\\' {
			p.pos++
			if p.pos >= len(p.input) {
				return Term{}, fmt.Errorf("unexpected end of input in string escape")
			}
			esc := p.input[p.pos]
			switch esc {
			case 'n':
				buf.WriteRune('\n')
			case 't':
				buf.WriteRune('\t')
			case '\\':
				buf.WriteRune('\\')
			case '"':
				buf.WriteRune('"')
			default:
				return Term{}, fmt.Errorf("unknown escape sequence: \\%c", esc)
			}
			p.pos++
			continue
		}
		if ch == '"' {
			p.pos++ // skip closing '"'
			return StrTerm(buf.String()), nil
		}
		buf.WriteRune(ch)
		p.pos++
	}
	return Term{}, fmt.Errorf("unclosed string at position %d", start)
}

func (p *parser) parseAtom() (Term, error) {
	start := p.pos
	for p.pos < len(p.input) && !isDelimiter(p.input[p.pos]) {
		p.pos++
	}
	token := string(p.input[start:p.pos])
	if token == "" {
		return Term{}, fmt.Errorf("unexpected character: %c", p.input[start])
	}

	if token == "true" {
		return BoolTerm(true), nil
	}
	if token == "false" {
		return BoolTerm(false), nil
	}

	if token[0] == '#' {
		if token == "#ignore" {
			return UnitTerm(Ignore), nil
		}
		return Term{}, fmt.Errorf("unknown literal: %s", token)
	}

	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return IntTerm(n), nil
	}

	return SymTerm(Intern(token)), nil
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == ';' {
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		if !unicode.IsSpace(ch) {
			break
		}
		p.pos++
	}
}

func isDelimiter(ch rune) bool {
	return unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' || ch == ';' || ch == '\''
}
