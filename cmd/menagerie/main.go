package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vkngwrapper/menagerie/internal/config"
	"github.com/vkngwrapper/menagerie/internal/logging"
)

func init() {
	// SDL and Vulkan presentation must stay on the main thread.
	runtime.LockOSThread()
}

type flags struct {
	config   string
	width    int
	height   int
	debug    bool
	strict   bool
	logLevel string
	device   string
}

// register adds the flags shared by every subcommand that reads the config.
func (f *flags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "TOML config file")
	cmd.Flags().IntVar(&f.width, "width", 0, "window width")
	cmd.Flags().IntVar(&f.height, "height", 0, "window height")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "enable validation layers")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "treat acquire, submit and present errors as fatal")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&f.device, "device", "", "physical device name (default: first discrete GPU)")
}

// load reads the config file, if any, and applies the flags the user set.
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		cfg, err = config.Load(f.config)
		if err != nil {
			return nil, err
		}
	}

	set := cmd.Flags().Changed
	if set("width") {
		cfg.Width = f.width
	}
	if set("height") {
		cfg.Height = f.height
	}
	if set("debug") {
		cfg.Debug = f.debug
	}
	if set("strict") {
		cfg.Strict = f.strict
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Finish(); err != nil {
		return nil, err
	}

	logger, err := logging.NewText(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetLogger(logger)
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "menagerie",
		Short:         "Draw instanced triangles, squares and stars with Vulkan",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	f.register(root)

	root.AddCommand(newRunCommand(), newDevicesCommand(), newConfigCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
