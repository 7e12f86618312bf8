package lineproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlbtrace/app/event"
)

func TestEncodeEndToEnd(t *testing.T) {
	r := event.Reportable{
		Timestamp: 42,
		CPU:       1,
		Reason:    3,
		Label:     "TLB_LOCAL_MM_SHOOTDOWN",
		Comm:      "sshd",
	}
	line := Line(NewEncoder(0).Encode(r))
	assert.Equal(t,
		"tlb_flush,cpu=1,comm=sshd reason=3i,reason_str=\"TLB_LOCAL_MM_SHOOTDOWN\" 42\n",
		string(line))
}

func TestEncodeDocumentedExample(t *testing.T) {
	r := event.Reportable{
		Timestamp: 1718000000123456789,
		CPU:       3,
		Reason:    2,
		Label:     "TLB_LOCAL_SHOOTDOWN",
		Comm:      "bash",
	}
	assert.Equal(t,
		`tlb_flush,cpu=3,comm=bash reason=2i,reason_str="TLB_LOCAL_SHOOTDOWN" 1718000000123456789`,
		NewEncoder(0).Encode(r).String())
}

func TestEncodeTimestampOffset(t *testing.T) {
	rec := NewEncoder(1_000_000_000).Encode(event.Reportable{Timestamp: 500, Comm: "x", Label: "UNKNOWN", Reason: 99})
	assert.Equal(t, uint64(1_000_000_500), rec.Timestamp)
}

func TestEncodeEscapesComm(t *testing.T) {
	rec := NewEncoder(0).Encode(event.Reportable{
		Timestamp: 7,
		CPU:       0,
		Reason:    1,
		Label:     `odd "label"`,
		Comm:      "a,b c",
	})
	s := rec.String()
	assert.Equal(t, `tlb_flush,cpu=0,comm=a\,b\ c reason=1i,reason_str="odd \"label\"" 7`, s)

	sections := splitUnescaped(s, ' ')
	require.Len(t, sections, 3)
	tags := splitUnescaped(sections[0], ',')
	require.Len(t, tags, 3)
	assert.Equal(t, "tlb_flush", tags[0])
	assert.Equal(t, "cpu=0", tags[1])
	assert.Equal(t, `comm=a\,b\ c`, tags[2])
	assert.Equal(t, "a,b c", UnescapeTag(tags[2][len("comm="):]))
	assert.Equal(t, "7", sections[2])
}

func TestLineRecordOrder(t *testing.T) {
	rec := LineRecord{
		Measurement: "m",
		Tags:        []Tag{{"z", "1"}, {"a", "2"}},
		Fields:      []Field{{"y", IntField(-5)}, {"b", StringField("s")}},
		Timestamp:   0,
	}
	assert.Equal(t, `m,z=1,a=2 y=-5i,b="s" 0`, rec.String())
}

func TestLineTerminator(t *testing.T) {
	line := Line(LineRecord{Measurement: "m", Fields: []Field{{"v", IntField(1)}}, Timestamp: 1})
	assert.Equal(t, "m v=1i 1\n", string(line))
}

// splitUnescaped splits s on sep, ignoring separators preceded by a backslash
// and separators inside double quotes.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
