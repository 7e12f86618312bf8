package event

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// RecordSize is the byte length of a TLBFlushEvent in the ring buffer.
const RecordSize = 32

var ErrShortRecord = errors.New("short tlb_flush record")

// TLBFlushEvent mirrors the record written by the tracepoint program:
//
//	u64 ts; u32 cpu; u32 reason; char comm[16];
type TLBFlushEvent struct {
	Timestamp uint64 `json:"timestamp"`
	CPU       uint32 `json:"cpu"`
	Reason    uint32 `json:"reason"`
	Comm      [16]byte
}

func DecodeRaw(payload []byte) (TLBFlushEvent, error) {
	var e TLBFlushEvent
	if len(payload) < RecordSize {
		return e, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(payload), RecordSize)
	}
	e.Timestamp = binary.LittleEndian.Uint64(payload[0:8])
	e.CPU = binary.LittleEndian.Uint32(payload[8:12])
	e.Reason = binary.LittleEndian.Uint32(payload[12:16])
	copy(e.Comm[:], payload[16:32])
	return e, nil
}

// MarshalBinary produces the kernel layout. Used to feed records through the
// pipeline without a kernel.
func (this TLBFlushEvent) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], this.Timestamp)
	binary.LittleEndian.PutUint32(buf[8:12], this.CPU)
	binary.LittleEndian.PutUint32(buf[12:16], this.Reason)
	copy(buf[16:32], this.Comm[:])
	return buf, nil
}

// CommString returns the task name with trailing NULs removed. Each maximal
// invalid UTF-8 subsequence becomes one U+FFFD, so "\xff\xfe" yields two
// replacement characters and a truncated "\xe2\x82" yields one.
func (this TLBFlushEvent) CommString() string {
	comm := bytes.TrimRight(this.Comm[:], "\x00")
	if utf8.Valid(comm) {
		return string(comm)
	}
	var b strings.Builder
	b.Grow(len(comm) + 2*utf8.UTFMax)
	for len(comm) > 0 {
		r, size := utf8.DecodeRune(comm)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			comm = comm[invalidPrefix(comm):]
			continue
		}
		b.WriteRune(r)
		comm = comm[size:]
	}
	return b.String()
}

// invalidPrefix returns the length of the maximal prefix of p that starts a
// well-formed sequence but does not complete one, or 1 when p[0] cannot start
// any sequence.
func invalidPrefix(p []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xbf)
	switch c := p[0]; {
	case c >= 0xc2 && c <= 0xdf:
		need = 2
	case c == 0xe0:
		need, lo = 3, 0xa0
	case c >= 0xe1 && c <= 0xec, c == 0xee, c == 0xef:
		need = 3
	case c == 0xed:
		need, hi = 3, 0x9f
	case c == 0xf0:
		need, lo = 4, 0x90
	case c >= 0xf1 && c <= 0xf3:
		need = 4
	case c == 0xf4:
		need, hi = 4, 0x8f
	default:
		return 1
	}
	n := 1
	for n < need && n < len(p) {
		if p[n] < lo || p[n] > hi {
			break
		}
		n++
		lo, hi = 0x80, 0xbf
	}
	return n
}

// SetComm copies name into the fixed-size comm field, truncating to 15 bytes
// plus a terminating NUL as the kernel does.
func (this *TLBFlushEvent) SetComm(name string) {
	this.Comm = [16]byte{}
	copy(this.Comm[:len(this.Comm)-1], name)
}
