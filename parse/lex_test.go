package parse

import (
	"bufio"
	"strings"
	"testing"
)

func lexAll(t *testing.T, src string) []token {
	t.Helper()
	tokens := make(chan token)
	go lex(bufio.NewReader(strings.NewReader(src)), tokens)
	var out []token
	for tok := range tokens {
		if tok.Kind == badToken {
			t.Fatalf("lexing %q: %v", src, tok.Err)
		}
		out = append(out, tok)
	}
	return out
}

func kinds(ts []token) []tokenKind {
	ks := make([]tokenKind, len(ts))
	for i, t := range ts {
		ks[i] = t.Kind
	}
	return ks
}

func TestLexBasics(t *testing.T) {
	cases := []struct {
		src  string
		want []tokenKind
	}{
		{`42`, []tokenKind{numberToken, eofToken}},
		{`1.5`, []tokenKind{numberToken, eofToken}},
		{`0x2a`, []tokenKind{numberToken, eofToken}},
		{`foo`, []tokenKind{identToken, eofToken}},
		{`foo: 1`, []tokenKind{keywordToken, numberToken, eofToken}},
		{`a + b`, []tokenKind{identToken, operToken, identToken, eofToken}},
		{`x <- 1`, []tokenKind{identToken, operToken, numberToken, eofToken}},
		{`'str'`, []tokenKind{stringToken, eofToken}},
		{`(| x = 3 |)`, []tokenKind{lparenToken, barToken, identToken, operToken, numberToken, barToken, rparenToken, eofToken}},
		{`[ :a | a ]`, []tokenKind{lbrackToken, argToken, barToken, identToken, rbrackToken, eofToken}},
		{`^ 7`, []tokenKind{caretToken, numberToken, eofToken}},
		{`1. 2`, []tokenKind{numberToken, dotToken, numberToken, eofToken}},
		{`"comment" 3`, []tokenKind{numberToken, eofToken}},
		{`_IntAdd: x`, []tokenKind{keywordToken, identToken, eofToken}},
	}
	for _, c := range cases {
		got := kinds(lexAll(t, c.src))
		if len(got) != len(c.want) {
			t.Errorf("%q lexed to %v, want %v", c.src, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("%q token %d is %v, want %v", c.src, i, got[i], c.want[i])
			}
		}
	}
}

func TestLexValues(t *testing.T) {
	ts := lexAll(t, `add: 2 With: 3`)
	if ts[0].Value != "add:" || ts[2].Value != "With:" {
		t.Errorf("keyword values wrong: %q, %q", ts[0].Value, ts[2].Value)
	}
	ts = lexAll(t, `'a\nb\''`)
	if ts[0].Value != "a\nb'" {
		t.Errorf("escapes wrong: %q", ts[0].Value)
	}
	ts = lexAll(t, `3.`)
	if ts[0].Kind != numberToken || ts[0].Value != "3" || ts[1].Kind != dotToken {
		t.Errorf("trailing period folded into number: %v %q", ts[0].Kind, ts[0].Value)
	}
}

func TestLexPositions(t *testing.T) {
	ts := lexAll(t, "a\n  b")
	if ts[0].Line != 1 || ts[0].Col != 1 {
		t.Errorf("first token at %d:%d", ts[0].Line, ts[0].Col)
	}
	if ts[1].Line != 2 || ts[1].Col != 3 {
		t.Errorf("second token at %d:%d", ts[1].Line, ts[1].Col)
	}
}

func TestLexErrors(t *testing.T) {
	for _, src := range []string{`'open`, `"open`, `'\q'`, `0x`} {
		tokens := make(chan token)
		go lex(bufio.NewReader(strings.NewReader(src)), tokens)
		bad := false
		for tok := range tokens {
			if tok.Kind == badToken {
				bad = true
			}
		}
		if !bad {
			t.Errorf("%q lexed without error", src)
		}
	}
}
