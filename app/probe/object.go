package probe

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cilium/ebpf"
	manager "github.com/ehids/ebpfmanager"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ObjectSection is the ELF section of the handler in bpf/tlb_flush.bpf.c.
const ObjectSection = "tracepoint/" + TracepointGroup + "/" + TracepointName

// LoadObject loads a precompiled ELF object (see bpf/tlb_flush.bpf.c)
// instead of the in-process program. The object must define the "events"
// ring buffer and "drops" per-CPU array.
func LoadObject(path string, opts Options) (*Probe, error) {
	opts.setDefaults()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bpf object: %w", err)
	}
	defer f.Close()

	bpfManager := &manager.Manager{
		Probes: []*manager.Probe{
			{
				Section:      ObjectSection,
				EbpfFuncName: TracepointName,
			},
		},
		Maps: []*manager.Map{
			{
				Name: EventsMapName,
			},
			{
				Name: DropsMapName,
			},
		},
	}
	bpfManagerOptions := manager.Options{
		VerifierOptions: ebpf.CollectionOptions{
			Programs: ebpf.ProgramOptions{
				LogSize: 2097152,
			},
		},
		MapSpecEditors: map[string]manager.MapSpecEditor{
			EventsMapName: {
				MaxEntries: opts.RingSize,
				EditorFlag: manager.EditMaxEntries,
			},
		},
		RLimit: &unix.Rlimit{
			Cur: math.MaxUint64,
			Max: math.MaxUint64,
		},
	}

	if err = bpfManager.InitWithOptions(f, bpfManagerOptions); err != nil {
		return nil, fmt.Errorf("couldn't init manager: %w", err)
	}
	if err = bpfManager.Start(); err != nil {
		bpfManager.Stop(manager.CleanAll)
		return nil, fmt.Errorf("couldn't start manager: %w", err)
	}

	events, err := getMap(bpfManager, EventsMapName)
	if err != nil {
		bpfManager.Stop(manager.CleanAll)
		return nil, err
	}
	drops, err := getMap(bpfManager, DropsMapName)
	if err != nil {
		bpfManager.Stop(manager.CleanAll)
		return nil, err
	}

	opts.Logger.Info("Attached tracepoint from object",
		zap.String("object", path),
		zap.String("section", ObjectSection),
		zap.Uint32("ring_size", opts.RingSize))

	return &Probe{
		events:  events,
		drops:   drops,
		manager: bpfManager,
		logger:  opts.Logger,
	}, nil
}

func getMap(m *manager.Manager, name string) (*ebpf.Map, error) {
	found, ok, err := m.GetMap(name)
	if err != nil {
		return nil, fmt.Errorf("get %s map: %w", name, err)
	}
	if !ok {
		return nil, errors.New("cannot find " + name + " map")
	}
	return found, nil
}
