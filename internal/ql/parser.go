package ql

import (
	"strconv"
)

// ParseExpression parses a complete QL expression.
func ParseExpression(input string) (Expression, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParsePredicate parses an expression whose top-level node is a predicate.
func ParsePredicate(input string) (Predicate, error) {
	expr, err := ParseExpression(input)
	if err != nil {
		return nil, err
	}
	pred, ok := expr.(Predicate)
	if !ok {
		return nil, syntaxError(0, "%q is not a predicate", input)
	}
	return pred, nil
}

// ParseTimePair parses a clock range such as "9:00-10:30".
func ParseTimePair(input string) (TimePair, error) {
	p, err := newParser(input)
	if err != nil {
		return TimePair{}, err
	}
	start, err := p.parseTime()
	if err != nil {
		return TimePair{}, err
	}
	if _, err := p.expect(TokMinus); err != nil {
		return TimePair{}, err
	}
	end, err := p.parseTime()
	if err != nil {
		return TimePair{}, err
	}
	if err := p.expectEOF(); err != nil {
		return TimePair{}, err
	}
	return TimePair{Start: start, End: end}, nil
}

// ParseTime parses a clock time such as "3:00".
func ParseTime(input string) (Time, error) {
	p, err := newParser(input)
	if err != nil {
		return Time{}, err
	}
	t, err := p.parseTime()
	if err != nil {
		return Time{}, err
	}
	if err := p.expectEOF(); err != nil {
		return Time{}, err
	}
	return t, nil
}

// MustParseExpression is like ParseExpression but panics on error.
func MustParseExpression(input string) Expression {
	expr, err := ParseExpression(input)
	if err != nil {
		panic(err)
	}
	return expr
}

// MustParsePredicate is like ParsePredicate but panics on error.
func MustParsePredicate(input string) Predicate {
	pred, err := ParsePredicate(input)
	if err != nil {
		panic(err)
	}
	return pred
}

// MustParseTimePair is like ParseTimePair but panics on error.
func MustParseTimePair(input string) TimePair {
	tp, err := ParseTimePair(input)
	if err != nil {
		panic(err)
	}
	return tp
}

type parser struct {
	tokens []Token
	pos    int
}

func newParser(input string) (*parser, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens}, nil
}

func (p *parser) parseExpr() (Expression, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.match(TokOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.match(TokAnd) {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}

	return left, nil
}

// parseComparison handles = < <= > >=. Comparisons do not chain.
func (p *parser) parseComparison() (Expression, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	op := p.current().Kind
	switch op {
	case TokEq, TokGt, TokGte, TokLt, TokLte:
	default:
		return left, nil
	}
	p.advance()

	right, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	switch op {
	case TokEq:
		return Equality{Left: left, Right: right}, nil
	case TokGt:
		return Comparison{GreaterThan: true, Left: left, Right: right}, nil
	case TokGte:
		return Comparison{GreaterThan: true, OrEqual: true, Left: left, Right: right}, nil
	case TokLt:
		return Comparison{Left: left, Right: right}, nil
	default:
		return Comparison{OrEqual: true, Left: left, Right: right}, nil
	}
}

func (p *parser) parseArith() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.match(TokPlus) || p.match(TokPercent) {
		op := p.current().Kind
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == TokPlus {
			left = Addition{Left: left, Right: right}
		} else {
			left = Modulo{Left: left, Right: right}
		}
	}

	return left, nil
}

func (p *parser) parseUnary() (Expression, error) {
	if p.match(TokNot) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expression, error) {
	tok := p.current()

	switch tok.Kind {
	case TokLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return expr, nil

	case TokNumber:
		p.advance()
		n, err := strconv.ParseUint(tok.Value, 10, 32)
		if err != nil {
			return nil, syntaxError(tok.Pos, "number %s out of range", tok.Value)
		}
		return Number(n), nil

	case TokDate:
		p.advance()
		d, err := ParseDate(tok.Value)
		if err != nil {
			return nil, syntaxError(tok.Pos, "invalid date %s", tok.Value)
		}
		return d, nil

	case TokIdent:
		if p.peek(1).Kind == TokLParen {
			if _, ok := functionArity[tok.Value]; ok {
				return p.parseCall()
			}
		}
		p.advance()
		return identifier(tok)

	case TokEOF:
		return nil, syntaxError(tok.Pos, "unexpected end of input")
	}

	return nil, syntaxError(tok.Pos, "unexpected %v", tok)
}

var functionArity = map[string]int{
	"md":  1,
	"wd":  1,
	"wdp": 2,
	"nw":  2,
}

func (p *parser) parseCall() (Expression, error) {
	name := p.current()
	p.advance() // name
	p.advance() // '('

	var args []Expression
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(TokComma) {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	if want := functionArity[name.Value]; len(args) != want {
		return nil, syntaxError(name.Pos, "%s takes %d argument(s), got %d", name.Value, want, len(args))
	}

	switch name.Value {
	case "md":
		return MonthdayFunc{Date: args[0]}, nil
	case "wd":
		return WeekdayFunc{Date: args[0]}, nil
	case "wdp":
		return WeekdayPredecessor{Weekday: args[0], Date: args[1]}, nil
	default:
		return NumberOfWeeks{Low: args[0], High: args[1]}, nil
	}
}

func identifier(tok Token) (Expression, error) {
	switch tok.Value {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	}
	for ph, name := range placeholderNames {
		if name == tok.Value {
			return ph, nil
		}
	}
	if w, ok := lookupWeekday(tok.Value); ok {
		return w, nil
	}
	if m, ok := lookupMonth(tok.Value); ok {
		return m, nil
	}
	return nil, syntaxError(tok.Pos, "unknown identifier %q", tok.Value)
}

func (p *parser) parseTime() (Time, error) {
	hour, err := p.expectInt(23)
	if err != nil {
		return Time{}, err
	}
	if _, err := p.expect(TokColon); err != nil {
		return Time{}, err
	}
	minute, err := p.expectInt(59)
	if err != nil {
		return Time{}, err
	}
	return Time{Hour: hour, Minute: minute}, nil
}

func (p *parser) expectInt(max int) (int, error) {
	tok, err := p.expect(TokNumber)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil || n > max {
		return 0, syntaxError(tok.Pos, "%s out of range 0..%d", tok.Value, max)
	}
	return n, nil
}

func (p *parser) current() Token {
	return p.peek(0)
}

func (p *parser) peek(offset int) Token {
	pos := p.pos + offset
	if pos < len(p.tokens) {
		return p.tokens[pos]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return Token{}, syntaxError(tok.Pos, "expected %v, got %v", kind, tok)
	}
	p.advance()
	return tok, nil
}

func (p *parser) expectEOF() error {
	if tok := p.current(); tok.Kind != TokEOF {
		return syntaxError(tok.Pos, "unexpected %v", tok)
	}
	return nil
}
