package module

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tlbtrace/app/config"
	"tlbtrace/app/emitter"
	"tlbtrace/app/event"
	"tlbtrace/app/lineproto"
	"tlbtrace/app/metrics"
)

// Emitter sends one encoded line.
type Emitter interface {
	Emit(line []byte) emitter.Result
}

// Consumer drains a RecordReader and pushes every reportable record through
// decode, encode and emit, one record at a time.
type Consumer struct {
	decoder *event.Decoder
	encoder lineproto.Encoder
	emitter Emitter
	console *Console
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewConsumer(decoder *event.Decoder, encoder lineproto.Encoder, em Emitter, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Consumer{
		decoder: decoder,
		encoder: encoder,
		emitter: em,
		metrics: m,
		logger:  logger,
	}
}

// WithConsole mirrors every reported event to c.
func (this *Consumer) WithConsole(c *Console) *Consumer {
	this.console = c
	return this
}

// Run reads until ctx is cancelled or the reader is closed. Cancellation
// closes the reader; a record already being dispatched is finished first.
// A reader failure other than ErrClosed closes the reader and is returned.
func (this *Consumer) Run(ctx context.Context, rd RecordReader) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			if err := rd.Close(); err != nil {
				this.logger.Warn("Failed to close record reader", zap.Error(err))
			}
		case <-stop:
		}
	}()

	for {
		raw, err := rd.Read()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				this.logger.Debug("Record reader closed")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			if cerr := rd.Close(); cerr != nil {
				this.logger.Warn("Failed to close record reader", zap.Error(cerr))
			}
			return fmt.Errorf("reading from ring buffer: %w", err)
		}

		this.Dispatch(raw)

		if ctx.Err() != nil {
			this.logger.Debug("Consumer received close signal from context.Done()")
			return nil
		}
	}
}

// Dispatch handles one raw record. It reports whether a line was emitted.
func (this *Consumer) Dispatch(raw []byte) bool {
	this.metrics.EventsReceived.Inc()

	e, err := event.DecodeRaw(raw)
	if err != nil {
		this.metrics.DecodeErrors.Inc()
		this.logger.Warn("Failed to decode record", zap.Error(err))
		return false
	}

	r, ok := this.decoder.Decode(e)
	if !ok {
		// task switches are dropped without being counted
		if e.Reason != config.TLBFlushOnTaskSwitch {
			this.metrics.EventsSuppressed.Inc()
		}
		return false
	}

	if this.console != nil {
		this.console.Print(r)
	}

	line := lineproto.Line(this.encoder.Encode(r))
	if ce := this.logger.Check(zap.DebugLevel, "Emitting line"); ce != nil {
		ce.Write(zap.ByteString("line", line[:len(line)-1]))
	}
	this.emitter.Emit(line)
	return true
}
