package module

import (
	"errors"
	"sync"

	"github.com/cilium/ebpf/ringbuf"
)

// ErrClosed is returned by a RecordReader after Close.
var ErrClosed = errors.New("record reader closed")

// RecordReader yields raw records in delivery order. Read blocks until a
// record is available; Close unblocks a pending Read, which then returns
// ErrClosed.
type RecordReader interface {
	Read() ([]byte, error)
	Close() error
}

type ringbufReader struct {
	rd        *ringbuf.Reader
	closeOnce sync.Once
	closeErr  error
}

func newRingbufReader(rd *ringbuf.Reader) *ringbufReader {
	return &ringbufReader{rd: rd}
}

func (this *ringbufReader) Read() ([]byte, error) {
	record, err := this.rd.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return record.RawSample, nil
}

// Close may be called by both the consumer and the module; only the first
// call reaches the ring buffer.
func (this *ringbufReader) Close() error {
	this.closeOnce.Do(func() {
		this.closeErr = this.rd.Close()
	})
	return this.closeErr
}
