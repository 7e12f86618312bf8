// Package lineproto builds InfluxDB line-protocol records for TLB flush events.
package lineproto

import (
	"strconv"

	"tlbtrace/app/event"
)

// Measurement is the line-protocol measurement name for every record.
const Measurement = "tlb_flush"

type Tag struct {
	Key   string
	Value string
}

// FieldValue is a typed line-protocol field value.
type FieldValue interface {
	appendTo(dst []byte) []byte
}

// IntField is serialized with the integer suffix, e.g. 3i.
type IntField int64

func (v IntField) appendTo(dst []byte) []byte {
	dst = strconv.AppendInt(dst, int64(v), 10)
	return append(dst, 'i')
}

// StringField is serialized double-quoted with quotes and backslashes escaped.
type StringField string

func (v StringField) appendTo(dst []byte) []byte {
	dst = append(dst, '"')
	dst = append(dst, EscapeFieldString(string(v))...)
	return append(dst, '"')
}

type Field struct {
	Key   string
	Value FieldValue
}

// LineRecord is one line-protocol point. Tags and Fields are written in
// slice order.
type LineRecord struct {
	Measurement string
	Tags        []Tag
	Fields      []Field
	Timestamp   uint64
}

// AppendTo appends the serialized record, without a line terminator, to dst.
func (r LineRecord) AppendTo(dst []byte) []byte {
	dst = append(dst, r.Measurement...)
	for _, t := range r.Tags {
		dst = append(dst, ',')
		dst = append(dst, EscapeTag(t.Key)...)
		dst = append(dst, '=')
		dst = append(dst, EscapeTag(t.Value)...)
	}
	dst = append(dst, ' ')
	for i, f := range r.Fields {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, EscapeTag(f.Key)...)
		dst = append(dst, '=')
		dst = f.Value.appendTo(dst)
	}
	dst = append(dst, ' ')
	return strconv.AppendUint(dst, r.Timestamp, 10)
}

func (r LineRecord) String() string {
	return string(r.AppendTo(nil))
}

// Line returns the serialized record terminated by a single newline, ready
// to be written as one datagram.
func Line(r LineRecord) []byte {
	buf := make([]byte, 0, 128)
	buf = r.AppendTo(buf)
	return append(buf, '\n')
}

// Encoder turns reportable events into line records. Offset is added to the
// monotonic event timestamp to obtain epoch nanoseconds.
type Encoder struct {
	Offset uint64
}

func NewEncoder(offset uint64) Encoder {
	return Encoder{Offset: offset}
}

func (e Encoder) Encode(r event.Reportable) LineRecord {
	return LineRecord{
		Measurement: Measurement,
		Tags: []Tag{
			{Key: "cpu", Value: strconv.FormatUint(uint64(r.CPU), 10)},
			{Key: "comm", Value: r.Comm},
		},
		Fields: []Field{
			{Key: "reason", Value: IntField(r.Reason)},
			{Key: "reason_str", Value: StringField(r.Label)},
		},
		Timestamp: r.Timestamp + e.Offset,
	}
}
