// Package calc evaluates arithmetic expressions over fetched metric data.
// Expressions may reference metrics as SOURCE:METRIC:FIELD (for example
// "stripe:revenue:current" or the shorthand "GA:sessions:previous") and call
// a small set of financial helper functions.
package calc

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/talkdataco/financial-assistant/internal/connector"
)

// sourceShorthand expands the abbreviations the prompt documents.
var sourceShorthand = map[string]string{
	"GA": "google_analytics",
	"S":  "stripe",
}

var referencePattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*):([A-Za-z_][A-Za-z0-9_]*):([A-Za-z_][A-Za-z0-9_]*)`)

// Calculator resolves metric references against a snapshot and evaluates
// expressions.
type Calculator struct {
	snapshot *connector.Snapshot
}

func New(snapshot *connector.Snapshot) *Calculator {
	return &Calculator{snapshot: snapshot}
}

// Value extracts a single metric field from the snapshot. Missing paths
// resolve to 0 so partially fetched data never aborts a calculation.
func (c *Calculator) Value(source, metric, field string) float64 {
	if c.snapshot == nil {
		return 0
	}
	if full, ok := sourceShorthand[source]; ok {
		source = full
	}
	value, ok := c.snapshot.Metric(source, metric)
	if !ok || value.Err != "" {
		return 0
	}
	switch field {
	case "current":
		return value.Current
	case "previous":
		if value.Previous != nil {
			return *value.Previous
		}
	case "change":
		if value.Change != nil {
			return *value.Change
		}
	}
	return 0
}

// Evaluate computes the value of the expression. Metric references are
// substituted first, then the expression is parsed and evaluated.
func (c *Calculator) Evaluate(expression string) (float64, error) {
	resolved := referencePattern.ReplaceAllStringFunc(expression, func(ref string) string {
		parts := referencePattern.FindStringSubmatch(ref)
		v := c.Value(parts[1], parts[2], parts[3])
		return "(" + strconv.FormatFloat(v, 'f', -1, 64) + ")"
	})

	tokens, err := lex(resolved)
	if err != nil {
		return 0, err
	}
	p := &parser{tokens: tokens}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if !p.atEnd() {
		return 0, fmt.Errorf("unexpected token %q", p.peek().text)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("expression %q does not evaluate to a finite number", expression)
	}
	return result, nil
}

// Explain describes how a calculation was performed.
func Explain(expression string, result float64) string {
	return fmt.Sprintf("Evaluated the expression %s, which gives %.2f.", expression, result)
}

type fn struct {
	minArgs int
	maxArgs int // -1 for variadic
	apply   func(args []float64) float64
}

var functions = map[string]fn{
	"abs":   {1, 1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"round": {1, 1, func(a []float64) float64 { return math.Round(a[0]) }},
	"min": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {1, -1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"sum": {1, -1, func(a []float64) float64 {
		var s float64
		for _, v := range a {
			s += v
		}
		return s
	}},
	"avg": {1, -1, func(a []float64) float64 {
		var s float64
		for _, v := range a {
			s += v
		}
		return s / float64(len(a))
	}},
	"percent": {1, 1, func(a []float64) float64 { return a[0] * 100 }},
	"growth_rate": {2, 2, func(a []float64) float64 {
		if a[1] == 0 {
			return 0
		}
		return (a[0] - a[1]) / a[1]
	}},
	"percentage_change": {2, 2, func(a []float64) float64 {
		if a[1] == 0 {
			return 0
		}
		return (a[0] - a[1]) / a[1] * 100
	}},
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", input[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: v, text: input[i:j]})
			i = j
		case isIdentStart(ch):
			j := i
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[i:j]})
			i = j
		case ch == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case ch == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "["})
			i++
		case ch == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]"})
			i++
		case ch == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '%' || ch == '^':
			tokens = append(tokens, token{kind: tokOp, text: string(ch)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", string(ch))
		}
	}
	return tokens, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.atEnd() || p.peek().kind != kind {
		return fmt.Errorf("expected %s", what)
	}
	p.pos++
	return nil
}

// parseExpr handles + and -.
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for !p.atEnd() && p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

// parseTerm handles *, / and %.
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for !p.atEnd() && p.peek().kind == tokOp && (p.peek().text == "*" || p.peek().text == "/" || p.peek().text == "%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (float64, error) {
	if !p.atEnd() && p.peek().kind == tokOp && p.peek().text == "-" {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parsePower()
}

// parsePower handles ^, right associative.
func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if !p.atEnd() && p.peek().kind == tokOp && p.peek().text == "^" {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (float64, error) {
	if p.atEnd() {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokLParen:
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return 0, err
		}
		return v, nil
	case tokIdent:
		f, ok := functions[t.text]
		if !ok {
			return 0, fmt.Errorf("unknown identifier %q", t.text)
		}
		if err := p.expect(tokLParen, "( after "+t.text); err != nil {
			return 0, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return 0, err
		}
		if len(args) < f.minArgs || (f.maxArgs >= 0 && len(args) > f.maxArgs) {
			return 0, fmt.Errorf("wrong number of arguments for %s", t.text)
		}
		return f.apply(args), nil
	default:
		return 0, fmt.Errorf("unexpected token %q", t.text)
	}
}

// parseArgs parses a function argument list up to the closing paren. A list
// literal [a, b, c] splices its elements into the argument slice, which is
// how avg([x, y]) style calls work.
func (p *parser) parseArgs() ([]float64, error) {
	var args []float64
	if !p.atEnd() && p.peek().kind == tokRParen {
		p.pos++
		return args, nil
	}
	for {
		if !p.atEnd() && p.peek().kind == tokLBracket {
			p.pos++
			for {
				v, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, v)
				if p.atEnd() || p.peek().kind != tokComma {
					break
				}
				p.pos++
			}
			if err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
		} else {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}

		if p.atEnd() {
			return nil, fmt.Errorf("expected )")
		}
		if p.peek().kind == tokComma {
			p.pos++
			continue
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}
