// Command router runs a distance-vector routing daemon speaking the
// mesh's three-message UDP protocol, with an interactive CLI for
// submitting text messages and inspecting the routing table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"vecrouter/internal/config"
	"vecrouter/internal/delivery"
	"vecrouter/internal/engine"
	"vecrouter/internal/logger"
	zapfactory "vecrouter/internal/logger/zap"
	"vecrouter/internal/routingtable"
	"vecrouter/internal/telemetry"
	"vecrouter/internal/transport"
)

var defaultConfigPath = "config/router.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)
	lgr = lgr.Named("router")

	tracer, shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "vecrouter", cfg.Node.Addr)
	defer func() { _ = shutdownTracer(context.Background()) }()

	neighbors, err := config.LoadNeighbors(cfg.Node.NeighborsFile)
	if err != nil {
		lgr.Error("failed to load neighbors file", logger.F("err", err.Error()))
		os.Exit(1)
	}
	lgr.Info("loaded neighbors", logger.F("self", cfg.Node.Addr), logger.F("neighbors", neighbors))

	tr, err := transport.New(cfg.Node.Addr, transport.WithLogger(lgr.Named("transport")))
	if err != nil {
		lgr.Error("failed to bind transport", logger.F("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = tr.Close() }()

	table := routingtable.New(cfg.Node.Addr, neighbors, routingtable.WithLogger(lgr.Named("routingtable")))
	sink := delivery.New(delivery.WithLogger(lgr.Named("delivery")))

	e := engine.New(cfg.Node.Addr, tr, table, sink, engine.Intervals{
		Announce:        cfg.Intervals.Announce,
		Monitor:         cfg.Intervals.Monitor,
		Print:           cfg.Intervals.Print,
		NeighborTimeout: cfg.Intervals.NeighborTimeout,
	}, engine.WithLogger(lgr.Named("engine")), engine.WithTracer(tracer))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e.Start(ctx)
	lgr.Info("router started", logger.F("self", cfg.Node.Addr))

	go runCLI(cfg.Node.Addr, e, table, stop)

	<-ctx.Done()
	lgr.Info("shutdown signal received, stopping")
	_ = tr.Close() // unblocks the listener's pending receive
	e.Wait()
}

// runCLI drives the operator's interactive prompt: "<dest>;<payload>"
// submits a text message, "R" prints the routing table, and
// "sair"/"exit"/"quit" triggers a graceful shutdown.
func runCLI(self string, e *engine.Engine, table *routingtable.Table, stop context.CancelFunc) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("router %s. commands: <dest>;<payload>  R  sair/exit/quit\n", self)

	for {
		input, err := line.Prompt(fmt.Sprintf("router[%s]> ", self))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			break
		}
		line.AppendHistory(input)

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "R" {
			fmt.Println(engine.FormatTable(self, table.Snapshot()))
			continue
		}

		switch strings.ToLower(input) {
		case "sair", "exit", "quit":
			stop()
			return
		}

		dest, payload, ok := strings.Cut(input, ";")
		dest, payload = strings.TrimSpace(dest), strings.TrimSpace(payload)
		if !ok || dest == "" || payload == "" {
			fmt.Println("invalid format. use: <dest>;<payload>, 'R', or 'sair'/'exit'/'quit'")
			continue
		}

		if e.Submit(dest, payload) {
			fmt.Printf("message sent toward %s\n", dest)
		} else {
			fmt.Printf("no known route to %s, message dropped\n", dest)
		}
	}

	stop()
}
