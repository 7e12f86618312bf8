package probe

import (
	"testing"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlbtrace/app/event"
)

func builtinCalls(insns asm.Instructions) []asm.BuiltinFunc {
	var calls []asm.BuiltinFunc
	for _, ins := range insns {
		if ins.OpCode.JumpOp() == asm.Call && ins.Src == asm.R0 {
			calls = append(calls, asm.BuiltinFunc(ins.Constant))
		}
	}
	return calls
}

func TestProgramHelperSequence(t *testing.T) {
	insns := programInstructions(3, 4)
	assert.Equal(t, []asm.BuiltinFunc{
		asm.FnRingbufReserve,
		asm.FnKtimeGetNs,
		asm.FnGetSmpProcessorId,
		asm.FnGetCurrentComm,
		asm.FnRingbufSubmit,
		asm.FnMapLookupElem,
	}, builtinCalls(insns))
}

func TestProgramMapReferences(t *testing.T) {
	insns := programInstructions(3, 4)
	var fds []int64
	for _, ins := range insns {
		if ins.IsLoadFromMap() {
			fds = append(fds, ins.Constant)
		}
	}
	assert.Equal(t, []int64{3, 4}, fds)
}

func TestProgramReservesRecordSize(t *testing.T) {
	insns := programInstructions(3, 4)
	// r2 holds the reservation size when bpf_ringbuf_reserve is called
	for i, ins := range insns {
		if ins.OpCode.JumpOp() == asm.Call && asm.BuiltinFunc(ins.Constant) == asm.FnRingbufReserve {
			size := insns[i-2]
			assert.Equal(t, asm.R2, size.Dst)
			assert.Equal(t, int64(event.RecordSize), size.Constant)
			return
		}
	}
	t.Fatal("no bpf_ringbuf_reserve call")
}

func TestProgramReadsReasonFromContext(t *testing.T) {
	insns := programInstructions(3, 4)
	found := false
	for _, ins := range insns {
		if ins.OpCode.Class() == asm.LdXClass && ins.OpCode.Mode() == asm.MemMode && ins.Src == asm.R6 {
			assert.Equal(t, int16(reasonOffset), ins.Offset)
			found = true
		}
	}
	assert.True(t, found)
}

func TestProgramJumpLabels(t *testing.T) {
	insns := programInstructions(3, 4)
	symbols := map[string]bool{}
	for _, ins := range insns {
		if s := ins.Symbol(); s != "" {
			symbols[s] = true
		}
	}
	for _, ins := range insns {
		if ref := ins.Reference(); ref != "" && !ins.IsLoadFromMap() {
			assert.True(t, symbols[ref], "jump to undefined label %q", ref)
		}
	}
	assert.True(t, symbols["drop"])
}

func TestProgramSpec(t *testing.T) {
	spec := programSpec(3, 4)
	assert.Equal(t, ebpf.TracePoint, spec.Type)
	assert.Equal(t, "GPL", spec.License)
	require.NotEmpty(t, spec.Instructions)
}

func TestMapSpecs(t *testing.T) {
	events := eventsMapSpec(1 << 16)
	assert.Equal(t, ebpf.RingBuf, events.Type)
	assert.Equal(t, uint32(1<<16), events.MaxEntries)

	drops := dropsMapSpec()
	assert.Equal(t, ebpf.PerCPUArray, drops.Type)
	assert.Equal(t, uint32(8), drops.ValueSize)
	assert.Equal(t, uint32(1), drops.MaxEntries)
}

func TestSumDrops(t *testing.T) {
	assert.Equal(t, uint64(0), sumDrops(nil))
	assert.Equal(t, uint64(6), sumDrops([]uint64{1, 2, 3}))
}
