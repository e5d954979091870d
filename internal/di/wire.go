package di

import (
	"fmt"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/buildplanner"
	"github.com/cyclus-sim/cyclus/internal/config"
	"github.com/cyclus-sim/cyclus/internal/cyclusctx"
	"github.com/cyclus-sim/cyclus/internal/eventsink"
	"github.com/cyclus-sim/cyclus/internal/inspect"
	"github.com/cyclus-sim/cyclus/internal/market"
	"github.com/cyclus-sim/cyclus/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MarketSpec names one commodity market to stand up, and the compatibility
// policy it clears offers against.
type MarketSpec struct {
	Commodity string
	Policy    market.Policy // nil selects market.GreedyPolicy
}

// Options carries everything Wire needs beyond what config.SimulationConfig
// already supplies: the commodities to clear markets for, the metrics
// registry, and the logger. Registering prototype factories and recipes is
// left to the caller (cmd/cyclus) by walking
// Container.Ctx after Wire returns, since those registrations are
// simulation-specific and have no sensible generic default here.
type Options struct {
	Markets  []MarketSpec
	Registry prometheus.Registerer // metrics registry; prometheus.NewRegistry() if nil
	Log      zerolog.Logger
}

// Wire constructs a ready-to-run Container from cfg and opts, mirroring the
// teacher's staged Wire (InitializeDatabases -> InitializeRepositories ->
// InitializeServices -> RegisterJobs): each stage below either succeeds and
// hands its resources to the next, or fails and unwinds every resource
// opened by an earlier stage before returning the error.
func Wire(cfg *config.SimulationConfig, opts Options) (*Container, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	sink, err := initEventsink(cfg, opts.Log)
	if err != nil {
		return nil, fmt.Errorf("di: initialize eventsink: %w", err)
	}

	ctx := cyclusctx.New(cfg.Duration, cfg.StartYear, cfg.StartMonth, sink)
	ctx.SetTime(cfg.SimStart)

	tree, markets, err := initAgentTreeAndMarkets(opts.Markets, reg)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("di: initialize agent tree and markets: %w", err)
	}
	tree.SetRecorder(ctx)
	for _, m := range markets {
		m.SetRecorder(ctx)
	}

	metrics, err := scheduler.NewMetrics(reg)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("di: initialize scheduler metrics: %w", err)
	}

	timer := scheduler.New(ctx, tree, cfg.DecayInterval, opts.Log, metrics)
	for commodity, m := range markets {
		timer.RegisterResolveListener(commodity, m)
	}

	hub := inspect.NewHub()
	txlog := inspect.NewLog(0)
	timer.SetPublisher(hub)
	for _, m := range markets {
		m.SetObserver(txlog)
	}

	return &Container{
		Sink:         sink,
		Ctx:          ctx,
		Tree:         tree,
		Markets:      markets,
		Plans:        buildplanner.NewRegistry(),
		Metrics:      metrics,
		Timer:        timer,
		Hub:          hub,
		Transactions: txlog,
	}, nil
}

// initEventsink opens the run's event sink, mirroring InitializeDatabases
// opening the run's SQL connections.
func initEventsink(cfg *config.SimulationConfig, log zerolog.Logger) (eventsink.Recorder, error) {
	dbPath := cfg.DataDir + "/cyclus.db"
	return eventsink.NewSQLiteRecorder(dbPath, log)
}

// initAgentTreeAndMarkets builds the empty agent tree and one Market per
// requested commodity, mirroring InitializeRepositories constructing one
// repository per opened database.
func initAgentTreeAndMarkets(specs []MarketSpec, reg prometheus.Registerer) (*agent.Tree, map[string]*market.Market, error) {
	tree := agent.NewTree()
	markets := make(map[string]*market.Market, len(specs))
	for _, s := range specs {
		mm, err := market.NewMetrics(reg, s.Commodity)
		if err != nil {
			return nil, nil, fmt.Errorf("market %q: %w", s.Commodity, err)
		}
		markets[s.Commodity] = market.New(s.Commodity, s.Policy, mm)
	}
	return tree, markets, nil
}
