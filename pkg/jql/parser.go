// Package jql parses the constrained JQL subset accepted by the search and
// webhook-filter endpoints into a structured filter/sort plan.
//
// Grammar:
//
//	query     := clause { "AND" clause } [ order ]
//	clause    := field ( "=" | "!=" ) value
//	           | field "IN" "(" value { "," value } ")"
//	           | datefield ( ">" | ">=" | "<" | "<=" ) value
//	order     := "ORDER" "BY" field [ "ASC" | "DESC" ] { "," field [...] }
//
// Values may be bare words or single/double-quoted strings; quotes are
// stripped. The function currentUser() parses to an unresolved placeholder.
// Nested boolean logic (OR, parentheses around clauses) is deliberately
// unsupported.
package jql

import (
	"fmt"
	"strings"
	"time"
)

// Date fields accepted in comparison clauses.
var dateFields = map[string]bool{
	"created": true,
	"updated": true,
}

// Parse parses a filter string strictly, returning an error on malformed
// input. An empty string yields an empty plan.
func Parse(input string) (Plan, error) {
	plan := newPlan()
	toks, err := lex(input)
	if err != nil {
		return plan, err
	}
	if len(toks) == 0 {
		return plan, nil
	}

	p := &parser{toks: toks}
	for {
		if p.peekIs("ORDER") {
			break
		}
		if err := p.clause(&plan); err != nil {
			return plan, err
		}
		if p.done() {
			return plan, nil
		}
		if p.peekIs("ORDER") {
			break
		}
		if !p.acceptKeyword("AND") {
			return plan, fmt.Errorf("jql: expected AND or ORDER BY near %q", p.peek().text)
		}
	}

	if err := p.order(&plan); err != nil {
		return plan, err
	}
	if !p.done() {
		return plan, fmt.Errorf("jql: trailing input near %q", p.peek().text)
	}
	return plan, nil
}

// ParseLenient parses a filter string for search. Unparseable input is not an
// error: the result is an empty plan, meaning match everything.
func ParseLenient(input string) Plan {
	plan, err := Parse(input)
	if err != nil {
		return newPlan()
	}
	return plan
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("jql: unterminated string starting at offset %d", i)
			}
			toks = append(toks, token{tokString, input[i+1 : j]})
			i = j + 1
		case c == '=':
			toks = append(toks, token{tokOp, "="})
			i++
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokOp, "!="})
				i += 2
			} else {
				return nil, fmt.Errorf("jql: unexpected %q at offset %d", c, i)
			}
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
			i++
		default:
			j := i
			for j < len(input) && !strings.ContainsRune(" \t\n\r(),=!<>'\"", rune(input[j])) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("jql: unexpected %q at offset %d", c, i)
			}
			toks = append(toks, token{tokWord, input[i:j]})
			i = j
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) peekIs(keyword string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, keyword)
}

func (p *parser) acceptKeyword(keyword string) bool {
	if p.peekIs(keyword) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) clause(plan *Plan) error {
	field := p.next()
	if field.kind != tokWord {
		return fmt.Errorf("jql: expected field name, got %q", field.text)
	}
	name := strings.ToLower(field.text)

	if p.acceptKeyword("IN") {
		return p.inClause(plan, name)
	}

	op := p.next()
	if op.kind != tokOp {
		return fmt.Errorf("jql: expected operator after %q", field.text)
	}

	switch op.text {
	case "=", "!=":
		value, err := p.value()
		if err != nil {
			return err
		}
		if op.text == "=" {
			plan.Equals[name] = value
		} else {
			plan.NotEquals[name] = value
		}
		return nil
	case ">", ">=", "<", "<=":
		if !dateFields[name] {
			return fmt.Errorf("jql: comparison operators are only valid on created/updated, got %q", name)
		}
		value, err := p.value()
		if err != nil {
			return err
		}
		bound, err := parseDate(value)
		if err != nil {
			return err
		}
		plan.Dates = append(plan.Dates, DateFilter{Field: name, Op: DateOp(op.text), Bound: bound})
		return nil
	default:
		return fmt.Errorf("jql: unsupported operator %q", op.text)
	}
}

func (p *parser) inClause(plan *Plan, field string) error {
	if t := p.next(); t.kind != tokLParen {
		return fmt.Errorf("jql: expected ( after IN, got %q", t.text)
	}
	var values []string
	for {
		value, err := p.value()
		if err != nil {
			return err
		}
		values = append(values, value)
		t := p.next()
		if t.kind == tokRParen {
			break
		}
		if t.kind != tokComma {
			return fmt.Errorf("jql: expected , or ) in IN list, got %q", t.text)
		}
	}
	plan.In[field] = values
	return nil
}

// value consumes one value token, folding the currentUser() function call into
// its placeholder.
func (p *parser) value() (string, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokWord:
		if strings.EqualFold(t.text, "currentUser") && p.peek().kind == tokLParen {
			p.next()
			if rp := p.next(); rp.kind != tokRParen {
				return "", fmt.Errorf("jql: expected ) after currentUser(, got %q", rp.text)
			}
			return CurrentUserPlaceholder, nil
		}
		return t.text, nil
	default:
		return "", fmt.Errorf("jql: expected value, got %q", t.text)
	}
}

func (p *parser) order(plan *Plan) error {
	if !p.acceptKeyword("ORDER") {
		return fmt.Errorf("jql: expected ORDER, got %q", p.peek().text)
	}
	if !p.acceptKeyword("BY") {
		return fmt.Errorf("jql: expected BY after ORDER")
	}
	for {
		t := p.next()
		if t.kind != tokWord {
			return fmt.Errorf("jql: expected sort field, got %q", t.text)
		}
		key := SortKey{Field: strings.ToLower(t.text)}
		if p.acceptKeyword("DESC") {
			key.Descending = true
		} else {
			p.acceptKeyword("ASC")
		}
		plan.OrderBy = append(plan.OrderBy, key)
		if p.peek().kind != tokComma {
			return nil
		}
		p.next()
	}
}

// parseDate accepts RFC 3339 timestamps and bare dates (2006-01-02).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("jql: cannot parse date %q", s)
}
