package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rawbytedev/segwire/pkg/config"
)

var (
	rootCmd = &cobra.Command{
		Use:               "segwire",
		Short:             "Inspect, build and ship segment-framed messages",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: preRunE,
	}

	configPath     string
	logLevel       string
	traversalLimit uint64

	// cfg is resolved once per invocation in preRunE.
	cfg *config.Conf
)

func init() {
	rootFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(inspectCmd, packCmd, unpackCmd, serveCmd, sendCmd)
}

func rootFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.Uint64Var(&traversalLimit, "traversal-limit", 0, "largest message body accepted, in words")
}

func preRunE(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("traversal-limit") {
		if traversalLimit == 0 {
			return errors.New("--traversal-limit must be positive")
		}
		cfg.Reader.TraversalLimitWords = traversalLimit
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", cfg.Log.Level)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
