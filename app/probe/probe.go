// Package probe loads the tlb:tlb_flush tracepoint program and owns the ring
// buffer it writes to.
package probe

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	manager "github.com/ehids/ebpfmanager"
	"go.uber.org/zap"

	"tlbtrace/app/config"
)

type Options struct {
	RingSize uint32
	Logger   *zap.Logger
}

func (o *Options) setDefaults() {
	if o.RingSize == 0 {
		o.RingSize = config.DefaultRingSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Probe is an attached tracepoint program together with its maps.
type Probe struct {
	events *ebpf.Map
	drops  *ebpf.Map

	prog    *ebpf.Program
	tp      link.Link
	manager *manager.Manager
	logger  *zap.Logger
}

// Load assembles the tracepoint program in process and attaches it.
func Load(opts Options) (*Probe, error) {
	opts.setDefaults()
	if err := rlimit.RemoveMemlock(); err != nil {
		opts.Logger.Warn("Failed to remove memlock limit", zap.Error(err))
	}

	events, err := ebpf.NewMap(eventsMapSpec(opts.RingSize))
	if err != nil {
		return nil, fmt.Errorf("create %s map: %w", EventsMapName, err)
	}
	drops, err := ebpf.NewMap(dropsMapSpec())
	if err != nil {
		events.Close()
		return nil, fmt.Errorf("create %s map: %w", DropsMapName, err)
	}

	prog, err := ebpf.NewProgram(programSpec(events.FD(), drops.FD()))
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			opts.Logger.Error("eBPF verifier error", zap.String("details", fmt.Sprintf("%+v", ve)))
		}
		drops.Close()
		events.Close()
		return nil, fmt.Errorf("load %s program: %w", TracepointName, err)
	}

	tp, err := link.Tracepoint(TracepointGroup, TracepointName, prog, nil)
	if err != nil {
		prog.Close()
		drops.Close()
		events.Close()
		return nil, fmt.Errorf("attach tracepoint %s/%s: %w", TracepointGroup, TracepointName, err)
	}

	opts.Logger.Info("Attached tracepoint",
		zap.String("tracepoint", TracepointGroup+"/"+TracepointName),
		zap.Uint32("ring_size", opts.RingSize))

	return &Probe{
		events: events,
		drops:  drops,
		prog:   prog,
		tp:     tp,
		logger: opts.Logger,
	}, nil
}

// Events is the ring buffer map the consumer reads from.
func (p *Probe) Events() *ebpf.Map {
	return p.events
}

// Drops returns the number of records the program could not reserve space
// for, summed across CPUs.
func (p *Probe) Drops() (uint64, error) {
	var perCPU []uint64
	if err := p.drops.Lookup(uint32(0), &perCPU); err != nil {
		return 0, fmt.Errorf("lookup %s: %w", DropsMapName, err)
	}
	return sumDrops(perCPU), nil
}

func sumDrops(perCPU []uint64) uint64 {
	var total uint64
	for _, v := range perCPU {
		total += v
	}
	return total
}

// Close detaches the program before releasing the maps so no record is
// written to a closed ring buffer.
func (p *Probe) Close() error {
	var errs []error
	defer p.logger.Debug("Detached tracepoint", zap.String("tracepoint", TracepointGroup+"/"+TracepointName))
	if p.manager != nil {
		if err := p.manager.Stop(manager.CleanAll); err != nil {
			errs = append(errs, fmt.Errorf("stop manager: %w", err))
		}
		return errors.Join(errs...)
	}
	if p.tp != nil {
		if err := p.tp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detach tracepoint: %w", err))
		}
	}
	if p.prog != nil {
		if err := p.prog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range []*ebpf.Map{p.drops, p.events} {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
