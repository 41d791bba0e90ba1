package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/config"
	"github.com/PolarJunction/AgentOffice/internal/frontend"
	"github.com/PolarJunction/AgentOffice/internal/mock"
	"github.com/PolarJunction/AgentOffice/internal/monitor"
	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/PolarJunction/AgentOffice/internal/ws"
	"github.com/spf13/cobra"
)

// mockInterval is how often the demo generator appends lines.
const mockInterval = 1500 * time.Millisecond

type serverOptions struct {
	configPath string
	port       int
	logPath    string
	mock       bool
	dev        bool
}

func main() {
	log.SetPrefix("[agentoffice] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &serverOptions{}

	root := &cobra.Command{
		Use:   "agentoffice",
		Short: "Serve live agent activity derived from the gateway log",
		Long: "agentoffice tails the gateway log, tracks which agents are working and\n" +
			"what they have completed, and serves that state over HTTP and WebSocket.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			return runServer(cfg, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")
	root.Flags().IntVarP(&opts.port, "port", "p", 0, "override server port")
	root.Flags().StringVar(&opts.logPath, "log", "", "override gateway log path ({date} is replaced with today's date)")
	root.Flags().BoolVar(&opts.mock, "mock", false, "append synthetic gateway lines to the log")
	root.Flags().BoolVar(&opts.dev, "dev", false, "serve the frontend from the filesystem")

	root.AddCommand(newReplayCmd(opts), newVersionCmd())
	return root
}

// loadConfig reads the config file. A missing file is only an error when
// the path was given explicitly.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if explicit {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// registry returns the configured agents, or the built-in set.
func registry(cfg *config.Config) []session.Agent {
	if len(cfg.Agents) == 0 {
		return session.DefaultAgents
	}
	agents := make([]session.Agent, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		name := a.Name
		if name == "" {
			name = a.ID
		}
		agents = append(agents, session.Agent{ID: a.ID, Name: name})
	}
	return agents
}

func runServer(cfg *config.Config, opts *serverOptions) error {
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logPath != "" {
		cfg.Monitor.LogPath = opts.logPath
	}

	agents := registry(cfg)
	store := session.NewStore(agents, time.Now())
	broadcaster := ws.NewBroadcaster(store, cfg.Monitor.BroadcastThrottle, cfg.Monitor.SnapshotInterval, cfg.Server.MaxConnections)
	defer broadcaster.Stop()

	frontendDir := ""
	if opts.dev {
		frontendDir = devFrontendDir()
	}

	// Embedded frontend handler: when built with -tags embed, serves from binary.
	var embeddedHandler http.Handler
	if !opts.dev {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			if dir := devFrontendDir(); dir != "" {
				log.Printf("No embedded frontend, falling back to: %s", dir)
				embeddedHandler = http.FileServer(http.Dir(dir))
			}
		}
	}

	mon := monitor.New(cfg.Monitor, store, broadcaster)

	server := ws.NewServer(cfg.Server, store, broadcaster, frontendDir, opts.dev, embeddedHandler)
	server.SetTailHealth(mon.Health)
	processName := cfg.Gateway.ProcessName
	server.SetGatewayProbe(func(ctx context.Context) (ws.GatewayStatus, error) {
		return monitor.FindGateway(ctx, processName)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.mock {
		log.Println("Starting in mock mode (synthetic gateway lines)")
		ids := make([]string, len(agents))
		for i, a := range agents {
			ids[i] = a.ID
		}
		mock.NewGenerator(cfg.Monitor.LogPath, ids, mockInterval, time.Now().UnixNano()).Start(ctx)
	}

	log.Printf("Tracking %d agents", len(agents))
	mon.Start(ctx)
	defer mon.Stop()

	go watchReload(ctx, opts, mon, cfg.Monitor.LogPath)

	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	log.Println("Shutting down...")
	return nil
}

// watchReload re-reads the config on SIGHUP and applies a changed log
// path. Other settings require a restart.
func watchReload(ctx context.Context, opts *serverOptions, mon *monitor.Monitor, current string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := config.LoadOrDefault(opts.configPath)
		if err != nil {
			log.Printf("Config reload failed: %v", err)
			continue
		}
		next := cfg.Monitor.LogPath
		if opts.logPath != "" {
			next = opts.logPath
		}
		if next == current {
			log.Println("Config reloaded, log path unchanged")
			continue
		}
		mon.UpdateLogPath(next)
		current = next
	}
}

// devFrontendDir locates the frontend directory next to the binary or the
// working directory.
func devFrontendDir() string {
	candidates := []string{}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "..", "..", "internal", "frontend", "static"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "internal", "frontend", "static"))
	}
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
