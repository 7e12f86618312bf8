package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	DefaultDestination  = "127.0.0.1:8089"
	DefaultRingSize     = 256 * 1024
	DefaultDropInterval = 10 * time.Second
)

type GlobalConfig struct {
	Quiet        bool
	Debug        bool
	Console      bool
	LogFile      string
	ExecPath     string
	Destination  string
	BPFObject    string
	RingSize     uint32
	CPUs         string
	MetricsAddr  string
	DropInterval time.Duration
}

func NewGlobalConfig() *GlobalConfig {
	config := &GlobalConfig{
		Destination:  DefaultDestination,
		RingSize:     DefaultRingSize,
		DropInterval: DefaultDropInterval,
	}
	return config
}

func (this *GlobalConfig) Validate() error {
	host, port, err := net.SplitHostPort(this.Destination)
	if err != nil {
		return fmt.Errorf("invalid destination %q: %w", this.Destination, err)
	}
	if host == "" {
		return fmt.Errorf("invalid destination %q: empty host", this.Destination)
	}
	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		return fmt.Errorf("invalid destination %q: bad port", this.Destination)
	}
	if err := ValidateRingSize(this.RingSize, uint32(os.Getpagesize())); err != nil {
		return err
	}
	if _, err := this.GetFilter(); err != nil {
		return err
	}
	if this.DropInterval < 0 {
		return errors.New("drop interval must not be negative")
	}
	return nil
}

// ValidateRingSize checks the BPF ring buffer constraint: a power of two and
// a multiple of the page size.
func ValidateRingSize(size, pageSize uint32) error {
	if size == 0 || size&(size-1) != 0 {
		return fmt.Errorf("ring size %d is not a power of two", size)
	}
	if pageSize != 0 && size%pageSize != 0 {
		return fmt.Errorf("ring size %d is not a multiple of the page size %d", size, pageSize)
	}
	return nil
}

func (this *GlobalConfig) GetFilter() (Filter, error) {
	var filter Filter
	if err := filter.SetCPUs(this.CPUs); err != nil {
		return Filter{}, err
	}
	return filter, nil
}
