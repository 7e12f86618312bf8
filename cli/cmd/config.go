package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tlbtrace/app/config"
)

const envPrefix = "TLBTRACE"

func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("tlbtrace")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// bindFlags makes every persistent flag resolvable through viper, so a value
// can come from the flag, TLBTRACE_<FLAG> or the config file.
func bindFlags(v *viper.Viper, command *cobra.Command) error {
	var errs []error
	command.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("binding flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// loadConfig copies the resolved values back into conf.
func loadConfig(v *viper.Viper, conf *config.GlobalConfig) error {
	conf.Destination = v.GetString("destination")
	conf.CPUs = v.GetString("cpu")
	conf.BPFObject = v.GetString("bpf-object")
	conf.RingSize = v.GetUint32("ring-size")
	conf.DropInterval = v.GetDuration("drop-interval")
	conf.MetricsAddr = v.GetString("metrics-addr")
	conf.Console = v.GetBool("console")
	conf.LogFile = v.GetString("out")
	conf.Debug = v.GetBool("debug")
	conf.Quiet = v.GetBool("quiet")
	if conf.Destination == "" {
		return errors.New("destination must not be empty")
	}
	return nil
}
