package ql

import (
	"unicode"
)

// Token represents a lexical token
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

// TokenKind is the type of token
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokNumber
	TokDate
	TokLParen
	TokRParen
	TokComma
	TokEq
	TokAnd
	TokOr
	TokNot
	TokGt
	TokGte
	TokLt
	TokLte
	TokPlus
	TokPercent
	TokColon
	TokMinus
	TokEOF
)

var tokenNames = map[TokenKind]string{
	TokIdent:   "identifier",
	TokNumber:  "number",
	TokDate:    "date",
	TokLParen:  "'('",
	TokRParen:  "')'",
	TokComma:   "','",
	TokEq:      "'='",
	TokAnd:     "'&'",
	TokOr:      "'|'",
	TokNot:     "'!'",
	TokGt:      "'>'",
	TokGte:     "'>='",
	TokLt:      "'<'",
	TokLte:     "'<='",
	TokPlus:    "'+'",
	TokPercent: "'%'",
	TokColon:   "':'",
	TokMinus:   "'-'",
	TokEOF:     "end of input",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "unknown"
}

func (t Token) String() string {
	switch t.Kind {
	case TokIdent, TokNumber, TokDate:
		return t.Kind.String() + " " + t.Value
	}
	return t.Kind.String()
}

var singleChar = map[byte]TokenKind{
	'(': TokLParen,
	')': TokRParen,
	',': TokComma,
	'=': TokEq,
	'&': TokAnd,
	'|': TokOr,
	'!': TokNot,
	'+': TokPlus,
	'%': TokPercent,
	':': TokColon,
	'-': TokMinus,
}

// Lexer tokenizes QL source. The language is ASCII-only.
type Lexer struct {
	input string
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Lex tokenizes the entire input. The last token is always TokEOF.
func Lex(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	ch := l.input[l.pos]

	if k, ok := singleChar[ch]; ok {
		l.pos++
		return Token{Kind: k, Value: string(ch), Pos: start}, nil
	}

	switch ch {
	case '>', '<':
		l.pos++
		kind := TokGt
		if ch == '<' {
			kind = TokLt
		}
		if l.peek(0) == '=' {
			l.pos++
			kind++ // TokGte / TokLte follow TokGt / TokLt
		}
		return Token{Kind: kind, Value: l.input[start:l.pos], Pos: start}, nil
	}

	if isDigit(ch) {
		return l.scanNumberOrDate()
	}

	if isIdentStart(ch) {
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return Token{Kind: TokIdent, Value: l.input[start:l.pos], Pos: start}, nil
	}

	return Token{}, syntaxError(start, "unexpected character %q", rune(ch))
}

// scanNumberOrDate reads an unsigned integer, or a YYYY-MM-DD date when the
// digits are exactly four and followed by '-'.
func (l *Lexer) scanNumberOrDate() (Token, error) {
	start := l.pos
	l.skipDigits()

	if l.pos-start == 4 && l.peek(0) == '-' && isDigit(l.peek(1)) {
		l.pos++
		if l.skipDigits() != 2 || l.peek(0) != '-' {
			return Token{}, syntaxError(start, "malformed date %q, want YYYY-MM-DD", l.input[start:l.pos])
		}
		l.pos++
		if l.skipDigits() != 2 {
			return Token{}, syntaxError(start, "malformed date %q, want YYYY-MM-DD", l.input[start:l.pos])
		}
		return Token{Kind: TokDate, Value: l.input[start:l.pos], Pos: start}, nil
	}

	return Token{Kind: TokNumber, Value: l.input[start:l.pos], Pos: start}, nil
}

func (l *Lexer) skipDigits() int {
	n := 0
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
		n++
	}
	return n
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) peek(offset int) byte {
	pos := l.pos + offset
	if pos < len(l.input) {
		return l.input[pos]
	}
	return 0
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
