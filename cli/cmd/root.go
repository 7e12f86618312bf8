package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tlbtrace/app/config"
	"tlbtrace/app/module"
)

var (
	cfgFile       string
	global_config = config.NewGlobalConfig()
)

var rootCmd = &cobra.Command{
	Use:   "tlbtrace",
	Short: "Stream tlb:tlb_flush tracepoint events as InfluxDB line protocol",
	Long: `Attach to the tlb:tlb_flush tracepoint and send every reportable flush
to a Telegraf socket_listener (data_format = "influx") over UDP.

Flushes caused by a task switch are skipped. Delivery is best effort: records
are dropped when the ring buffer is full or the send fails.`,
	PersistentPreRunE: persistentPreRunEFunc,
	RunE:              runFunc,
	SilenceUsage:      true,
}

func runFunc(command *cobra.Command, args []string) error {
	logger, err := newLogger(global_config)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mod := &module.Module{}
	mod.Init(ctx, logger, global_config)
	if err := mod.Run(); err != nil {
		logger.Error("Module run failed", zap.String("module", mod.Name()), zap.Error(err))
		return err
	}
	logger.Debug("Module started successfully", zap.String("module", mod.Name()))

	// closed on signal or when the consumer fails
	<-mod.Done()
	logger.Info("Shutting down")

	failure := mod.Err()
	if err := mod.Close(); err != nil {
		logger.Error("Module close failed", zap.String("module", mod.Name()), zap.Error(err))
		if failure == nil {
			return err
		}
	}
	if failure != nil {
		logger.Error("Module stopped unexpectedly", zap.String("module", mod.Name()), zap.Error(failure))
	}
	return failure
}

func persistentPreRunEFunc(command *cobra.Command, args []string) error {
	exec_path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("please build as executable binary, %v", err)
	}
	global_config.ExecPath = path.Dir(exec_path)

	if err := loadConfig(viper.GetViper(), global_config); err != nil {
		return err
	}
	return global_config.Validate()
}

// newLogger builds the process logger. --out adds a log file, --quiet stops
// logging to the terminal.
func newLogger(conf *config.GlobalConfig) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if conf.Debug {
		logConfig = zap.NewDevelopmentConfig()
	}
	var outputs []string
	if !conf.Quiet || conf.LogFile == "" {
		outputs = append(outputs, "stderr")
	}
	if conf.LogFile != "" {
		log_path := conf.LogFile
		if !path.IsAbs(log_path) && conf.ExecPath != "" {
			log_path = path.Join(conf.ExecPath, log_path)
		}
		outputs = append(outputs, log_path)
	}
	logConfig.OutputPaths = outputs
	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func Execute() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.EnablePrefixMatching = true
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./tlbtrace.yaml)")
	flags.StringVarP(&global_config.Destination, "destination", "D", config.DefaultDestination, "UDP host:port of the line protocol listener")
	flags.StringVarP(&global_config.CPUs, "cpu", "c", "", "only report flushes on these CPUs, comma separated")
	flags.StringVarP(&global_config.BPFObject, "bpf-object", "b", "", "load the probe from a compiled ELF object instead of the built-in program")
	flags.Uint32Var(&global_config.RingSize, "ring-size", config.DefaultRingSize, "ring buffer size in bytes, power of two")
	flags.DurationVar(&global_config.DropInterval, "drop-interval", config.DefaultDropInterval, "how often to read the kernel drop counter, 0 disables")
	flags.StringVarP(&global_config.MetricsAddr, "metrics-addr", "m", "", "serve Prometheus metrics on this address")
	flags.BoolVar(&global_config.Console, "console", false, "also print every event to stdout")
	flags.StringVarP(&global_config.LogFile, "out", "o", "", "save the log to file")
	flags.BoolVarP(&global_config.Debug, "debug", "d", false, "enable debug logging")
	flags.BoolVarP(&global_config.Quiet, "quiet", "q", false, "wont logging to terminal when used")

	if err := bindFlags(viper.GetViper(), rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flags: %v\n", err)
	}
}
