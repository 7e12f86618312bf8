package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cilium/ebpf/ringbuf"
	"go.uber.org/zap"

	"tlbtrace/app/clock"
	"tlbtrace/app/config"
	"tlbtrace/app/emitter"
	"tlbtrace/app/event"
	"tlbtrace/app/lineproto"
	"tlbtrace/app/metrics"
	"tlbtrace/app/probe"
)

type Module struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	logger  *zap.Logger
	conf    *config.GlobalConfig
	name    string
	metrics *metrics.Metrics
	probe   *probe.Probe
	reader  RecordReader
	emitter *emitter.Emitter
	wg      sync.WaitGroup
}

func (this *Module) Init(ctx context.Context, logger *zap.Logger, conf *config.GlobalConfig) {
	this.ctx, this.cancel = context.WithCancelCause(ctx)
	this.name = "tlb_flush"
	this.logger = logger.Named(this.name)
	this.conf = conf
	this.metrics = metrics.New()
}

func (this *Module) Name() string {
	return this.name
}

func (this *Module) Metrics() *metrics.Metrics {
	return this.metrics
}

// Done is closed once the module stops, either through Close or because the
// consumer failed.
func (this *Module) Done() <-chan struct{} {
	return this.ctx.Done()
}

// Err returns the failure that stopped the module, or nil if it is still
// running or was stopped by its parent context or Close.
func (this *Module) Err() error {
	err := context.Cause(this.ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (this *Module) Run() error {
	// computed once; every timestamp of this run is shifted by the same amount
	offset, err := clock.BootToEpoch()
	if err != nil {
		return err
	}
	filter, err := this.conf.GetFilter()
	if err != nil {
		return err
	}
	decoder := event.NewDecoder(config.DefaultReasonTable(), filter)
	encoder := lineproto.NewEncoder(offset)

	this.emitter, err = emitter.Dial(this.conf.Destination, this.logger.Named("emitter"), this.metrics)
	if err != nil {
		return err
	}

	opts := probe.Options{RingSize: this.conf.RingSize, Logger: this.logger}
	if this.conf.BPFObject != "" {
		this.probe, err = probe.LoadObject(this.conf.BPFObject, opts)
	} else {
		this.probe, err = probe.Load(opts)
	}
	if err != nil {
		this.emitter.Close()
		return err
	}

	rd, err := ringbuf.NewReader(this.probe.Events())
	if err != nil {
		this.probe.Close()
		this.emitter.Close()
		return fmt.Errorf("creating %s reader: %w", probe.EventsMapName, err)
	}
	this.reader = newRingbufReader(rd)

	consumer := NewConsumer(decoder, encoder, this.emitter, this.metrics, this.logger)
	if this.conf.Console {
		consumer.WithConsole(NewConsole(os.Stdout))
	}

	this.logger.Info("Streaming tlb_flush events",
		zap.String("destination", this.conf.Destination),
		zap.Uint64("boot_to_epoch_ns", offset),
		zap.Bool("cpu_filter", !filter.Empty()))

	this.startConsumer(consumer, this.reader)

	if this.conf.DropInterval > 0 {
		watcher := &dropWatcher{
			counter:  this.probe,
			metrics:  this.metrics,
			logger:   this.logger,
			interval: this.conf.DropInterval,
		}
		this.wg.Add(1)
		go func() {
			defer this.wg.Done()
			watcher.run(this.ctx)
		}()
	}

	if this.conf.MetricsAddr != "" {
		this.wg.Add(1)
		go func() {
			defer this.wg.Done()
			if err := this.metrics.Serve(this.ctx, this.conf.MetricsAddr, this.logger); err != nil {
				this.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	return nil
}

// startConsumer runs consumer on rd. A consumer failure cancels the module so
// the drop watcher and metrics server stop with it.
func (this *Module) startConsumer(consumer *Consumer, rd RecordReader) {
	this.wg.Add(1)
	go func() {
		defer this.wg.Done()
		if err := consumer.Run(this.ctx, rd); err != nil {
			this.logger.Error("Consumer stopped", zap.Error(err))
			this.cancel(fmt.Errorf("%s: consumer: %w", this.name, err))
		}
	}()
}

// Close stops the consumer, closes the reader, then detaches the probe and
// closes the socket.
func (this *Module) Close() error {
	if this.cancel != nil {
		this.cancel(context.Canceled)
	}
	this.wg.Wait()

	var errs []error
	if this.reader != nil {
		if err := this.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if this.probe != nil {
		if err := this.probe.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if this.emitter != nil {
		if err := this.emitter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: close: %v", this.name, errs)
	}
	return nil
}
