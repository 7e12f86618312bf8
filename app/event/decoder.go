package event

import "tlbtrace/app/config"

// UnknownComm replaces an empty task name.
const UnknownComm = "unknown"

// Reportable is a decoded event that passed the filter.
type Reportable struct {
	Timestamp uint64
	CPU       uint32
	Reason    uint32
	Label     string
	Comm      string
}

// Decoder labels raw events and decides which are reported. Flushes caused
// by a task switch (reason 0) are never reported.
type Decoder struct {
	Table  config.ReasonTable
	Filter config.Filter
}

func NewDecoder(table config.ReasonTable, filter config.Filter) *Decoder {
	return &Decoder{Table: table, Filter: filter}
}

func (this *Decoder) Decode(e TLBFlushEvent) (Reportable, bool) {
	if e.Reason == config.TLBFlushOnTaskSwitch {
		return Reportable{}, false
	}
	if !this.Filter.Allows(e.CPU) {
		return Reportable{}, false
	}
	comm := e.CommString()
	if comm == "" {
		comm = UnknownComm
	}
	return Reportable{
		Timestamp: e.Timestamp,
		CPU:       e.CPU,
		Reason:    e.Reason,
		Label:     this.Table.Label(e.Reason),
		Comm:      comm,
	}, true
}
