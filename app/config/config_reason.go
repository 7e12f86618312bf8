package config

// UnknownReason is the label for reason codes missing from a ReasonTable.
const UnknownReason = "UNKNOWN"

// Reason codes of enum tlb_flush_reason (include/linux/mm_types.h).
const (
	TLBFlushOnTaskSwitch uint32 = iota
	TLBRemoteShootdown
	TLBLocalShootdown
	TLBLocalMMShootdown
	TLBRemoteSendIPI
)

// ReasonTable maps a tlb_flush reason code to its label.
type ReasonTable map[uint32]string

// DefaultReasonTable returns a fresh copy of the kernel's reason labels.
func DefaultReasonTable() ReasonTable {
	return ReasonTable{
		TLBFlushOnTaskSwitch: "TLB_FLUSH_ON_TASK_SWITCH",
		TLBRemoteShootdown:   "TLB_REMOTE_SHOOTDOWN",
		TLBLocalShootdown:    "TLB_LOCAL_SHOOTDOWN",
		TLBLocalMMShootdown:  "TLB_LOCAL_MM_SHOOTDOWN",
		TLBRemoteSendIPI:     "TLB_REMOTE_SEND_IPI",
	}
}

func (this ReasonTable) Label(reason uint32) string {
	if label, ok := this[reason]; ok {
		return label
	}
	return UnknownReason
}
