package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oulianov/audioghost-ai/internal/config"
	"github.com/oulianov/audioghost-ai/internal/logging"
)

// overrides holds flag values; empty means the flag was not given.
type overrides struct {
	Addr       string
	DataDir    string
	Device     string
	LogLevel   string
	LogFormat  string
	RuntimeURL string
}

// app is shared by every subcommand once the root pre-run has resolved
// the configuration.
type app struct {
	configPath string
	flags      overrides
	cfg        config.Config
	log        zerolog.Logger
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ghostd",
		Short:         "Text-prompted audio source separation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a .yaml, .json or .toml config file")
	pf.StringVar(&a.flags.Addr, "addr", "", "HTTP listen address (default :8000)")
	pf.StringVar(&a.flags.DataDir, "data-dir", "", "Directory for uploads, outputs, the task db and the token (default ~/.audioghost)")
	pf.StringVar(&a.flags.Device, "device", "", "Compute device: auto|cuda|mps|cpu")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "Log format: json|console")
	pf.StringVar(&a.flags.RuntimeURL, "runtime-url", "", "Attach to an external separation runtime instead of spawning one")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		cfg, err := resolveConfig(a.configPath, a.flags)
		if err != nil {
			return err
		}
		l, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.cfg, a.log, a.logCloser = cfg, l, closer
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.logCloser != nil {
			_ = a.logCloser.Close()
		}
	}

	root.AddCommand(newServeCmd(a), newRunCmd(a), newVersionCmd())
	return root
}

// resolveConfig layers the config file, GHOSTD_* env vars and flags, in
// that order, then applies defaults and validates.
func resolveConfig(path string, o overrides) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	cfg, err := cfg.ApplyEnv()
	if err != nil {
		return cfg, err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Addr, o.Addr)
	set(&cfg.DataDir, o.DataDir)
	set(&cfg.Device, o.Device)
	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.Format, o.LogFormat)
	set(&cfg.Runtime.URL, o.RuntimeURL)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ghostd %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}
