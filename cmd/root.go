package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/logger"
)

// Version is set at link time.
var Version = "dev"

type rootOptions struct {
	configPath string
	name       string
	logLevel   string
	verbose    bool
}

// NewRootCommand creates the xmbuild command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           common.AppName,
		Short:         "Run build projects made of conditional, nested tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a BuildConfig YAML file")
	flags.StringVar(&opts.name, "name", "", "project name, overrides metadata.name")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCommand(opts), newValidateCommand(opts), newVersionCommand())
	return root
}

// loadConfig reads the config file when given and applies command line overrides.
func (o *rootOptions) loadConfig() (*config.BuildConfig, error) {
	var cfg *config.BuildConfig
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.BuildConfig{Metadata: config.MetadataSpec{Name: common.AppName}}
		config.SetDefaults(cfg)
	}
	if o.name != "" {
		cfg.Metadata.Name = o.name
	}
	if o.logLevel != "" {
		cfg.Spec.Logging.Level = o.logLevel
	}
	if o.verbose {
		cfg.Spec.Logging.Verbose = true
	}
	return cfg, nil
}

func initLogger(cfg *config.BuildConfig) error {
	return logger.Init(logger.Options{
		Level:      cfg.Spec.Logging.Level,
		Verbose:    cfg.Spec.Logging.Verbose,
		OutputPath: cfg.Spec.Logging.OutputPath,
		NoColors:   cfg.Spec.Logging.NoColors,
	})
}
