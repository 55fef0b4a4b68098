package main

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/ipc"
	"github.com/Zereker/ipc/internal/config"
)

// app is the state shared by all subcommands, filled in PersistentPreRunE.
type app struct {
	cfgFile    string
	serverAddr string
	streamAddr string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ipcecho",
		Short: "Exchange discrete messages over UDP or length-prefixed TCP",
		Long: `ipcecho drives the ipc endpoints from the command line. "serve" runs
a datagram echo server (and optionally a stream listener), "send" sends a
datagram and waits for one reply, "frame" sends one length-prefixed frame.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.ipcecho/config.yaml)")
	root.PersistentFlags().StringVar(&a.serverAddr, "server", "", "datagram server address")
	root.PersistentFlags().StringVar(&a.streamAddr, "stream", "", "stream listener address")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(a), newSendCmd(a), newFrameCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	// Override config with flags
	if a.serverAddr != "" {
		cfg.ServerAddr = a.serverAddr
	}
	if a.streamAddr != "" {
		cfg.StreamAddr = a.streamAddr
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	return nil
}

// endpointOptions translates the configuration into endpoint options.
func (a *app) endpointOptions() []ipc.Option {
	return []ipc.Option{
		ipc.LoggerOption(a.logger),
		ipc.PollIntervalOption(a.cfg.PollInterval),
		ipc.ReadTimeoutOption(a.cfg.ReadTimeout),
		ipc.StreamReadTimeoutOption(a.cfg.StreamReadTimeout),
		ipc.MessageMaxSize(a.cfg.MaxMessageSize),
		ipc.PinSourceOption(a.cfg.PinSource),
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
