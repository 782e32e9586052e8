package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	rhema "github.com/mverlaine/rhema/core"
)

type serveOptions struct {
	socketPath string
	dataDir    string
	backend    string
	maxTraces  int
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rhema daemon",
	Long:  "Run the daemon: restore the session from the store and serve requests over a unix socket.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	bindServeFlags(serveCmd.Flags(), &serveOpts)
	rootCmd.AddCommand(serveCmd)
}

func bindServeFlags(fs *pflag.FlagSet, opts *serveOptions) {
	fs.StringVar(&opts.socketPath, "socket", "", "unix socket path")
	fs.StringVar(&opts.dataDir, "data-dir", "", "data directory for the store")
	fs.StringVar(&opts.backend, "store", "", "store backend: sqlite or bolt")
	fs.IntVar(&opts.maxTraces, "max-traces", 0, "max eval traces to retain")
}

func runServe(cmd *cobra.Command) error {
	if cmd.Flags().Changed("socket") {
		cfg.SocketPath = serveOpts.socketPath
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = serveOpts.dataDir
	}
	if cmd.Flags().Changed("store") {
		cfg.StoreBackend = serveOpts.backend
	}
	if cmd.Flags().Changed("max-traces") {
		cfg.MaxTraces = serveOpts.maxTraces
	}

	srv, err := rhema.NewServer(cfg)
	if err != nil {
		return err
	}

	// Handle shutdown signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logrus.Info("shutting down...")
		srv.Shutdown()
	}()

	logrus.Infof("rhema core listening (socket: %s, store: %s, data dir: %s)",
		cfg.SocketPath, cfg.StoreBackend, cfg.DataDir)
	srv.Run()
	// Run returns once the listener closes; Shutdown is idempotent, so
	// this waits for the signal-initiated shutdown to finish draining.
	return srv.Shutdown()
}
