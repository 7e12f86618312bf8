package config

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxCPUFilter is the largest number of CPUs a filter can list.
const MaxCPUFilter = 64

// Filter restricts reported events to a set of CPUs. The zero value allows
// every CPU.
type Filter struct {
	cpus map[uint32]struct{}
}

func (this *Filter) SetCPUs(cpus string) error {
	cpus = strings.TrimSpace(cpus)
	if cpus == "" {
		this.cpus = nil
		return nil
	}
	items := strings.Split(cpus, ",")
	if len(items) > MaxCPUFilter {
		return fmt.Errorf("max cpu filter count is %d, provided count:%d", MaxCPUFilter, len(items))
	}
	set := make(map[uint32]struct{}, len(items))
	for _, v := range items {
		value, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid cpu %q: %w", v, err)
		}
		set[uint32(value)] = struct{}{}
	}
	this.cpus = set
	return nil
}

func (this Filter) Allows(cpu uint32) bool {
	if len(this.cpus) == 0 {
		return true
	}
	_, ok := this.cpus[cpu]
	return ok
}

func (this Filter) Empty() bool {
	return len(this.cpus) == 0
}
