package probe

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"

	"tlbtrace/app/event"
)

const (
	TracepointGroup = "tlb"
	TracepointName  = "tlb_flush"

	EventsMapName = "events"
	DropsMapName  = "drops"

	// offset of `int reason` in the tlb_flush tracepoint context, after the
	// 8 bytes of common fields.
	reasonOffset = 8
	commSize     = 16
)

func eventsMapSpec(ringSize uint32) *ebpf.MapSpec {
	return &ebpf.MapSpec{
		Name:       EventsMapName,
		Type:       ebpf.RingBuf,
		MaxEntries: ringSize,
	}
}

func dropsMapSpec() *ebpf.MapSpec {
	return &ebpf.MapSpec{
		Name:       DropsMapName,
		Type:       ebpf.PerCPUArray,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	}
}

// programInstructions is the tracepoint handler. It reserves one record in
// the ring buffer and fills it in place; when the reservation fails it bumps
// the per-CPU drop counter instead and returns without waiting.
//
//	struct event_t { u64 ts; u32 cpu; u32 reason; char comm[16]; };
func programInstructions(eventsFD, dropsFD int) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1),

		asm.LoadMapPtr(asm.R1, eventsFD),
		asm.Mov.Imm(asm.R2, event.RecordSize),
		asm.Mov.Imm(asm.R3, 0),
		asm.FnRingbufReserve.Call(),
		asm.JEq.Imm(asm.R0, 0, "drop"),
		asm.Mov.Reg(asm.R7, asm.R0),

		asm.FnKtimeGetNs.Call(),
		asm.StoreMem(asm.R7, 0, asm.R0, asm.DWord),
		asm.FnGetSmpProcessorId.Call(),
		asm.StoreMem(asm.R7, 8, asm.R0, asm.Word),
		asm.LoadMem(asm.R1, asm.R6, reasonOffset, asm.Word),
		asm.StoreMem(asm.R7, 12, asm.R1, asm.Word),

		asm.Mov.Reg(asm.R1, asm.R7),
		asm.Add.Imm(asm.R1, 16),
		asm.Mov.Imm(asm.R2, commSize),
		asm.FnGetCurrentComm.Call(),

		asm.Mov.Reg(asm.R1, asm.R7),
		asm.Mov.Imm(asm.R2, 0),
		asm.FnRingbufSubmit.Call(),
		asm.Mov.Imm(asm.R0, 0),
		asm.Return(),

		asm.StoreImm(asm.R10, -4, 0, asm.Word).WithSymbol("drop"),
		asm.Mov.Reg(asm.R2, asm.R10),
		asm.Add.Imm(asm.R2, -4),
		asm.LoadMapPtr(asm.R1, dropsFD),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, "out"),
		asm.Mov.Imm(asm.R1, 1),
		asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
		asm.Mov.Imm(asm.R0, 0).WithSymbol("out"),
		asm.Return(),
	}
}

func programSpec(eventsFD, dropsFD int) *ebpf.ProgramSpec {
	return &ebpf.ProgramSpec{
		Name:         TracepointName,
		Type:         ebpf.TracePoint,
		License:      "GPL",
		Instructions: programInstructions(eventsFD, dropsFD),
	}
}
