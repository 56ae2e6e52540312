// RShield daemon: the single local process that owns the embedded
// store, the intercepting proxy, the scan orchestrator, the plugin
// runtime, and the brute-force engine, and exposes them to the
// desktop UI shell through internal/command's typed surface.
//
// Usage:
//
//	rshield-daemon serve --config ~/.rshield/config.yaml
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshield/rshield/internal/activescan"
	"github.com/rshield/rshield/internal/bruteforce"
	"github.com/rshield/rshield/internal/ca"
	"github.com/rshield/rshield/internal/cmdrunner"
	"github.com/rshield/rshield/internal/collect"
	"github.com/rshield/rshield/internal/command"
	"github.com/rshield/rshield/internal/config"
	"github.com/rshield/rshield/internal/orchestrator"
	"github.com/rshield/rshield/internal/passivescan"
	"github.com/rshield/rshield/internal/pluginrt"
	"github.com/rshield/rshield/internal/proxy"
	"github.com/rshield/rshield/internal/rsubdomain"
	"github.com/rshield/rshield/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "rshield-daemon",
		Short: "RShield offensive security platform daemon",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to config YAML")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(Version)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rshield/config.yaml"
	}
	return home + "/.rshield/config.yaml"
}

// serve wires every subsystem together and blocks until SIGINT/SIGTERM,
// grounded on appliance-daemon's config-load → signal-wired-context →
// daemon.Run shutdown pattern.
func serve(configPath string) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("prepare state dirs: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[rshield-daemon] shutdown signal: %v", sig)
		cancel()
	}()

	plugins := pluginrt.NewManager(st)

	var prox *proxy.Proxy
	var passiveEngine *passivescan.Engine
	if cfg.EnableProxy {
		prox, err = proxy.New(cfg.ProxyListenAddr, cfg.ProxyInterceptTLS, cfg.CertsDir())
		if err != nil {
			return fmt.Errorf("construct proxy: %w", err)
		}
		if err := prox.TryBind(); err != nil {
			return fmt.Errorf("proxy listen address unavailable: %w", err)
		}
		if err := prox.Start(); err != nil {
			return fmt.Errorf("start proxy: %w", err)
		}
		defer prox.Stop()
		log.Printf("[rshield-daemon] intercepting proxy listening on %s", cfg.ProxyListenAddr)

		passiveEngine = passivescan.NewEngine(st, plugins, cfg.VulnerabilityScanLevel, cfg.ThreadNum)
	}

	var bfEngine *bruteforce.Engine
	if cfg.EnableRawBruteforce {
		bfEngine = bruteforce.NewEngine(st, bruteforce.BuiltinAdapters(cmdrunner.ExecRunner{Timeout: 15 * time.Second}))
	}

	fingerprinter, err := activescan.NewFingerprinter()
	if err != nil {
		log.Printf("[rshield-daemon] built-in tech fingerprinter unavailable: %v", err)
	}

	caps := orchestrator.Capabilities{
		DNSCollectors: []orchestrator.DNSCollector{
			collect.CrtshCollector{},
			collect.HackerTargetCollector{},
			collect.AXFRCollector{},
		},
		DNSPlugins:   pluginrt.DNSPluginRunner{Manager: plugins},
		Resolver:     collect.StdResolver{},
		PortScan:     activescan.PortScanner{Runner: cmdrunner.ExecRunner{Timeout: 2 * time.Minute}},
		PortPlugins:  pluginrt.PortPluginRunner{Manager: plugins},
		WebProbe:     activescan.WebProber{Fingerprinter: fingerprinter},
		FingerprintP: pluginrt.FingerprintPluginRunner{Manager: plugins},
		APIExtract:   activescan.APIExtractor{},
	}
	if cfg.EnableRawBruteforce {
		caps.Bruteforce = rsubdomain.NewEngine(nil)
	}
	if passiveEngine != nil {
		caps.Risk = passiveEngine
	}

	orch := orchestrator.New(st, caps, cfg.TaskIntervalMinSecs, cfg.TaskIntervalMaxSecs)
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer orch.Stop()

	var certAuthority *ca.CA
	if prox != nil {
		certAuthority = prox.CA // nil if proxy disabled; open_cert_file then errors, matching §9's graceful-degrade contract
	}

	activeScanEngine := &activescan.Engine{
		PortScan: &activescan.PortScanner{Runner: cmdrunner.ExecRunner{Timeout: 2 * time.Minute}},
		WebProbe: &activescan.WebProber{Fingerprinter: fingerprinter},
		Nuclei:   &activescan.NucleiScanner{Runner: cmdrunner.ExecRunner{Timeout: 5 * time.Minute}},
	}

	surf := command.New(st, orch, plugins, bfEngine, certAuthority, prox, activeScanEngine)
	tasks, err := surf.GetTaskList()
	if err != nil {
		log.Printf("[rshield-daemon] command surface: initial task list: %v", err)
	} else {
		log.Printf("[rshield-daemon] command surface ready (%d tasks)", len(tasks))
	}

	if passiveEngine != nil && prox != nil {
		defaultTask, err := defaultMonitoringTaskID(st)
		if err == nil && defaultTask != 0 {
			if err := passiveEngine.Start(ctx, prox.Traffic, defaultTask); err != nil {
				log.Printf("[rshield-daemon] passive scan engine: %v", err)
			} else {
				defer passiveEngine.Stop()
			}
		}
	}

	log.Printf("[rshield-daemon] running (state_dir=%s)", cfg.StateDir)
	<-ctx.Done()
	log.Printf("[rshield-daemon] shutting down")
	return nil
}

// defaultMonitoringTaskID picks the first monitored task to attribute
// passive-scan findings to when the proxy starts before the UI shell
// has explicitly started a task-scoped passive scan. Returns 0 if none
// exist yet; the UI shell's start_passive_scan call is the normal path.
func defaultMonitoringTaskID(st *store.Store) (int64, error) {
	tasks, err := st.GetMonitoredTasks()
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	return tasks[0].ID, nil
}
