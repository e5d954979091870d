// Command cyclus runs a discrete-time agent-based material flow
// simulation, wiring configuration, the event sink, the agent tree and
// commodity markets, and the monthly scheduler together, grounded on the
// teacher's cmd/server/main.go startup sequence (load config, build
// logger, wire dependencies, start the HTTP surface, wait for shutdown).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/config"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/cyclus-sim/cyclus/internal/di"
	"github.com/cyclus-sim/cyclus/internal/inspect"
	"github.com/cyclus-sim/cyclus/internal/market"
	"github.com/cyclus-sim/cyclus/internal/scheduler"
	"github.com/cyclus-sim/cyclus/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	dataDir := flag.String("data-dir", "", "directory the event-sink database lives in (overrides CYCLUS_DATA_DIR)")
	httpPort := flag.Int("http-port", -1, "port internal/inspect listens on (overrides CYCLUS_HTTP_PORT); 0 turns it off, unset or <0 keeps the configured port")
	pretty := flag.Bool("pretty", true, "human-readable console log output instead of JSON lines")
	flag.Parse()

	cfg, err := config.Load(*dataDir)
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}
	if *httpPort >= 0 {
		cfg.HTTPPort = *httpPort
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: *pretty})
	log.Info().Msg("starting cyclus")

	if err := scheduler.CheckDiskSpace(cfg.DataDir); err != nil {
		log.Warn().Err(err).Msg("data directory disk space check failed")
	}

	const commodity = "enriched-uranium"
	container, err := di.Wire(cfg, di.Options{
		Markets:  []di.MarketSpec{{Commodity: commodity, Policy: market.GreedyPolicy{}}},
		Registry: prometheus.NewRegistry(),
		Log:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event sink")
		}
	}()

	if err := seedDemoScenario(container, commodity); err != nil {
		log.Fatal().Err(err).Msg("failed to seed demo scenario")
	}

	var inspector *inspect.Server
	if cfg.HTTPPort > 0 {
		inspector = inspect.New(inspect.Config{
			Port:         cfg.HTTPPort,
			Logger:       log,
			Ctx:          container.Ctx,
			Tree:         container.Tree,
			Hub:          container.Hub,
			Transactions: container.Transactions,
		})
		go func() {
			if err := inspector.Start(); err != nil {
				log.Error().Err(err).Msg("inspector stopped")
			}
		}()
		log.Info().Int("port", cfg.HTTPPort).Msg("inspector listening")
	}

	done := make(chan error, 1)
	go func() { done <- container.Timer.RunSim() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("simulation stopped with an error")
		} else {
			log.Info().Int("months", cfg.Duration).Msg("simulation completed")
		}
	case <-quit:
		log.Info().Msg("interrupted, shutting down")
	}

	if inspector != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := inspector.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("inspector forced to shut down")
		}
	}
}

// seedDemoScenario registers a minimal source+sink pair trading commodity
// through the market di.Wire already built, standing in for the XML
// scenario loader the full system would otherwise read a run's agent graph
// from (out of scope; see spec.md's PURPOSE & SCOPE).
func seedDemoScenario(c *di.Container, commodity string) error {
	comp, err := composition.FromMass(compmath.Vec{92235001: 1.0})
	if err != nil {
		return err
	}

	marketNode := agent.NewMarketNode(commodity, c.Markets[commodity])
	if err := c.Tree.Register(marketNode, agent.MarketKind, commodity+"-market", 0, false, 0); err != nil {
		return err
	}
	if err := c.Ctx.RegisterAgent(commodity+"-market", marketNode.AgentID()); err != nil {
		return err
	}

	source := agent.NewSourceFacility(c.Tree, "source", commodity, marketNode.AgentID(), comp, 100.0, 10.0)
	if err := c.Tree.Register(source, agent.FacilityKind, "source", 0, false, 0); err != nil {
		return err
	}
	if err := c.Ctx.RegisterAgent("source", source.AgentID()); err != nil {
		return err
	}
	c.Timer.RegisterTickListener("source", source)

	sink := agent.NewSinkFacility(c.Tree, "sink", commodity, marketNode.AgentID(), comp, 30.0, 10.0)
	if err := c.Tree.Register(sink, agent.FacilityKind, "sink", 0, false, 0); err != nil {
		return err
	}
	if err := c.Ctx.RegisterAgent("sink", sink.AgentID()); err != nil {
		return err
	}
	c.Timer.RegisterTickListener("sink", sink)

	return nil
}
