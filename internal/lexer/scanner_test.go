package lexer

import "testing"

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestScanTokensPunctuationAndOperators(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []TokenType
	}{
		{
			name:   "let binding",
			source: "let x := 1;",
			want:   []TokenType{TokenLet, TokenIdentifier, TokenAssign, TokenNumber, TokenSemicolon, TokenEOF},
		},
		{
			name:   "unicode membership and union",
			source: "x ∈ A ∪ B",
			want:   []TokenType{TokenIdentifier, TokenIn, TokenIdentifier, TokenUnion, TokenIdentifier, TokenEOF},
		},
		{
			name:   "ascii ellipsis and unicode ellipsis are the same token",
			source: "1...5 1…5",
			want: []TokenType{
				TokenNumber, TokenEllipsis, TokenNumber,
				TokenNumber, TokenEllipsis, TokenNumber,
				TokenEOF,
			},
		},
		{
			name:   "arrow and fat arrow",
			source: "a -> b => c",
			want: []TokenType{
				TokenIdentifier, TokenMapsTo, TokenIdentifier, TokenImplies, TokenIdentifier, TokenEOF,
			},
		},
		{
			name:   "hash and colon",
			source: "#S : x",
			want:   []TokenType{TokenHash, TokenIdentifier, TokenColon, TokenIdentifier, TokenEOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenTypes(NewScanner(tt.source).ScanTokens())
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanTokensKeywordsDoNotMisfireOnPrefixes(t *testing.T) {
	// Regression for the fixed identifierType fallthrough bug: identifiers
	// that share a prefix with a keyword must still scan as identifiers.
	tests := []struct {
		source string
		want   TokenType
	}{
		{"output", TokenIdentifier},
		{"out", TokenOut},
		{"funcName", TokenIdentifier},
		{"func", TokenFunc},
		{"andAlso", TokenIdentifier},
		{"and", TokenAnd},
		{"nullable", TokenIdentifier},
		{"null", TokenNull},
		{"thenable", TokenIdentifier},
		{"then", TokenThen},
		{"trueish", TokenIdentifier},
		{"true", TokenTrue},
		{"falsely", TokenIdentifier},
		{"false", TokenFalse},
	}
	for _, tt := range tests {
		toks := NewScanner(tt.source).ScanTokens()
		if len(toks) != 2 || toks[1].Type != TokenEOF {
			t.Fatalf("%q: expected a single token before EOF, got %v", tt.source, toks)
		}
		if toks[0].Type != tt.want {
			t.Errorf("%q: got %s, want %s", tt.source, toks[0].Type, tt.want)
		}
	}
}

func TestScanTokensComments(t *testing.T) {
	source := "let x := 1; // trailing line comment\n/* block\ncomment */ let y := 2;"
	got := tokenTypes(NewScanner(source).ScanTokens())
	want := []TokenType{
		TokenLet, TokenIdentifier, TokenAssign, TokenNumber, TokenSemicolon,
		TokenLet, TokenIdentifier, TokenAssign, TokenNumber, TokenSemicolon,
		TokenEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanTokensUnterminatedString(t *testing.T) {
	toks := NewScanner(`"abc`).ScanTokens()
	if len(toks) == 0 || toks[0].Type != TokenError {
		t.Fatalf("expected an error token, got %v", toks)
	}
}

func TestScanTokensBOMIsSwallowed(t *testing.T) {
	toks := NewScanner("\xEF\xBB\xBFlet x := 1;").ScanTokens()
	if toks[0].Type != TokenLet {
		t.Fatalf("expected leading BOM to be stripped, got %v", toks)
	}
}
