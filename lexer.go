package verdict

import (
	"strings"
	"unicode"
)

// lexer walks the input byte by byte and produces tokens.
type lexer struct {
	input string
	pos   int
}

// Tokenize converts a rule string into an ordered token sequence,
// terminated by a TokenEOF entry. It returns a *LexError on the first
// character that does not start any token.
func Tokenize(input string) ([]Token, error) {
	l := &lexer{input: input}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case '"':
		return l.readString()
	case '=':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenComparator, Text: "==", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenComparator, Text: "=", Pos: start}, nil
	case '!':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenComparator, Text: "!=", Pos: start}, nil
		}
		return Token{}, &LexError{Code: CodeUnexpectedChar, Pos: start, Char: '!'}
	case '>':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenComparator, Text: ">=", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenComparator, Text: ">", Pos: start}, nil
	case '<':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokenComparator, Text: "<=", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokenComparator, Text: "<", Pos: start}, nil
	case '-':
		if isDigit(l.peek(1)) {
			return l.readNumber(), nil
		}
		return Token{}, &LexError{Code: CodeUnexpectedChar, Pos: start, Char: '-'}
	}

	if isDigit(ch) {
		return l.readNumber(), nil
	}
	if isIdentStart(ch) {
		return l.readIdent(), nil
	}

	return Token{}, &LexError{Code: CodeUnexpectedChar, Pos: start, Char: rune(ch)}
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// peek returns the byte at offset ahead of the cursor, or 0 past the end.
func (l *lexer) peek(ahead int) byte {
	if l.pos+ahead >= len(l.input) {
		return 0
	}
	return l.input[l.pos+ahead]
}

func (l *lexer) readNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' && isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Kind: TokenNumber, Text: l.input[start:l.pos], Pos: start}
}

func (l *lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case '"':
			l.pos++
			return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return Token{}, &LexError{Code: CodeUnterminatedString, Pos: start}
			}
			l.pos++
			switch l.input[l.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				// \" \\ and any other escaped byte pass through verbatim.
				sb.WriteByte(l.input[l.pos])
			}
			l.pos++
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return Token{}, &LexError{Code: CodeUnterminatedString, Pos: start}
}

// readIdent reads an identifier and folds the AND/OR/NOT/true/false
// keywords. Keyword matching is word-boundary safe because the whole
// identifier run is consumed before comparison, so names like
// "androidVersion" stay identifiers.
func (l *lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	switch strings.ToUpper(text) {
	case "AND":
		return Token{Kind: TokenAnd, Text: text, Pos: start}
	case "OR":
		return Token{Kind: TokenOr, Text: text, Pos: start}
	case "NOT":
		return Token{Kind: TokenNot, Text: text, Pos: start}
	case "TRUE", "FALSE":
		return Token{Kind: TokenBool, Text: strings.ToLower(text), Pos: start}
	}
	return Token{Kind: TokenIdent, Text: text, Pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
