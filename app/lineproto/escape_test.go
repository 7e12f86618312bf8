package lineproto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var escapeInputs = []string{
	"",
	"bash",
	"a,b c",
	"k=v",
	`back\slash`,
	`\,`,
	`\\ \= \,`,
	`"quoted"`,
	`\"`,
	"trailing\\",
	",= \\\"",
	"kworker/u16:3",
}

// hasUnescaped reports whether s contains c without a preceding escape.
func hasUnescaped(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return true
		}
	}
	return false
}

func TestEscapeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bash", "bash"},
		{"a,b c", `a\,b\ c`},
		{"k=v", `k\=v`},
		{`a\b`, `a\\b`},
		{`\,`, `\\\,`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeTag(tt.in), "EscapeTag(%q)", tt.in)
	}
}

func TestEscapeTagRoundTrip(t *testing.T) {
	for _, in := range escapeInputs {
		escaped := EscapeTag(in)
		for _, c := range []byte{',', '=', ' '} {
			assert.False(t, hasUnescaped(escaped, c), "unescaped %q in %q", c, escaped)
		}
		assert.Equal(t, in, UnescapeTag(escaped))
	}
}

func TestEscapeFieldString(t *testing.T) {
	assert.Equal(t, `TLB_LOCAL_SHOOTDOWN`, EscapeFieldString("TLB_LOCAL_SHOOTDOWN"))
	assert.Equal(t, `say \"hi\"`, EscapeFieldString(`say "hi"`))
	assert.Equal(t, `a\\b`, EscapeFieldString(`a\b`))
	assert.Equal(t, `\\\"`, EscapeFieldString(`\"`))
	// tag-only metacharacters are left alone
	assert.Equal(t, "a,b c=d", EscapeFieldString("a,b c=d"))
}

func TestEscapeFieldStringRoundTrip(t *testing.T) {
	for _, in := range escapeInputs {
		quoted := `"` + EscapeFieldString(in) + `"`
		inner := strings.TrimSuffix(strings.TrimPrefix(quoted, `"`), `"`)
		assert.False(t, hasUnescaped(inner, '"'), "unescaped quote in %q", inner)
		assert.Equal(t, in, UnescapeFieldString(inner))
	}
}
