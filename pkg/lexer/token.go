package lexer

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota

	TokenIdent  // CSample, m_value1, const
	TokenNumber // 42, 0x1F, 1.5f, 10L
	TokenChar   // 'x'
	TokenString // "abc"
	TokenPunct  // { } ( ) :: -> ; , = * & < >

	// Tokens a C++ compiler would throw away but the converter keeps
	TokenLineComment  // // text
	TokenBlockComment // /* text */
	TokenDirective    // #define X 1 (whole logical line)
	TokenNewline      // \n
	TokenWhitespace   // spaces and tabs
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenIdent:        "IDENT",
	TokenNumber:       "NUMBER",
	TokenChar:         "CHAR",
	TokenString:       "STRING",
	TokenPunct:        "PUNCT",
	TokenLineComment:  "LINE_COMMENT",
	TokenBlockComment: "BLOCK_COMMENT",
	TokenDirective:    "DIRECTIVE",
	TokenNewline:      "NEWLINE",
	TokenWhitespace:   "WHITESPACE",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Loc is a position in the input. Offset is the byte offset of the
// token's first character, which lets parsers slice verbatim source.
type Loc struct {
	Line   int
	Column int
	Offset int
}

// Token represents a lexical token
type Token struct {
	Type TokenType
	Text string
	Loc  Loc
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Loc.Offset + len(t.Text)
}

// Is reports whether the token is the punctuator or identifier text.
func (t Token) Is(text string) bool {
	return (t.Type == TokenPunct || t.Type == TokenIdent) && t.Text == text
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool {
	return t.Type == TokenLineComment || t.Type == TokenBlockComment
}

// IsSpace reports whether the token is whitespace or a newline.
func (t Token) IsSpace() bool {
	return t.Type == TokenWhitespace || t.Type == TokenNewline
}

// IsTrivia reports whether the token carries no declaration syntax.
func (t Token) IsTrivia() bool {
	return t.IsSpace() || t.IsComment()
}
