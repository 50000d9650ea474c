package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/structs"
	"github.com/pkg/browser"
	"github.com/sarchlab/memcoherence/datarecording"
	"github.com/sarchlab/memcoherence/mem/acceptancetests/coherence"
	"github.com/sarchlab/memcoherence/mem/memcache"
	"github.com/sarchlab/memcoherence/monitoring"
	"github.com/sarchlab/memcoherence/tracing"
	"github.com/spf13/cobra"
)

type runFlags struct {
	agents      int
	ways        int
	sets        int
	wordsPerLn  int
	heapSize    int
	trtDepth    int
	uptDepth    int
	copiesLimit int
	xramLatency int

	seed         int
	ops          int
	lines        int
	uncachedRate int
	maxCycles    int

	record      string
	monitor     bool
	monitorPort int
	openMonitor bool
	debug       bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run random traffic from the agents and check coherence.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOpts.run(cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()

	f.IntVar(&runOpts.agents, "agents", envInt("agents", 4),
		"number of L1 agents")
	f.IntVar(&runOpts.ways, "ways", envInt("ways", 2),
		"number of ways of the memory cache")
	f.IntVar(&runOpts.sets, "sets", envInt("sets", 16),
		"number of sets of the memory cache, a power of two")
	f.IntVar(&runOpts.wordsPerLn, "words-per-line", envInt("words-per-line", 4),
		"number of 32-bit words in a line, a power of two")
	f.IntVar(&runOpts.heapSize, "heap-size", envInt("heap-size", 16),
		"number of entries of the sharer heap")
	f.IntVar(&runOpts.trtDepth, "trt-depth", envInt("trt-depth", 4),
		"number of outstanding external memory transactions")
	f.IntVar(&runOpts.uptDepth, "upt-depth", envInt("upt-depth", 4),
		"number of outstanding multicast updates")
	f.IntVar(&runOpts.copiesLimit, "copies-limit", envInt("copies-limit", 3),
		"number of sharers above which a line is tracked by a counter")
	f.IntVar(&runOpts.xramLatency, "xram-latency", envInt("xram-latency", 10),
		"latency of the external memory in cycles")

	f.IntVar(&runOpts.seed, "seed", envInt("seed", 1),
		"seed of the random traffic")
	f.IntVar(&runOpts.ops, "ops", envInt("ops", 200),
		"number of operations per agent")
	f.IntVar(&runOpts.lines, "lines", envInt("lines", 48),
		"number of lines the traffic touches")
	f.IntVar(&runOpts.uncachedRate, "uncached-percent",
		envInt("uncached-percent", 10),
		"percentage of the reads that bypass the L1 copy")
	f.IntVar(&runOpts.maxCycles, "max-cycles", envInt("max-cycles", 10000000),
		"number of cycles after which the run is aborted")

	f.StringVar(&runOpts.record, "record", envString("record", ""),
		"record the traces into the given SQLite file")
	f.BoolVar(&runOpts.monitor, "monitor", envBool("monitor", false),
		"serve the monitor while running")
	f.IntVar(&runOpts.monitorPort, "monitor-port", envInt("monitor-port", 0),
		"port of the monitor, random if 0")
	f.BoolVar(&runOpts.openMonitor, "open-monitor",
		envBool("open-monitor", false),
		"open the monitor in a browser, implies --monitor")
	f.BoolVar(&runOpts.debug, "debug", envBool("debug", false),
		"log the steps of the engines and agents")

	rootCmd.AddCommand(runCmd)
}

func (o runFlags) cacheBuilder() memcache.Builder {
	return memcache.MakeBuilder().
		WithNumWays(o.ways).
		WithNumSets(o.sets).
		WithWordsPerLine(o.wordsPerLn).
		WithHeapSize(o.heapSize).
		WithTRTDepth(o.trtDepth).
		WithUPTDepth(o.uptDepth).
		WithCopiesLimit(o.copiesLimit).
		WithDebugLog(o.debug)
}

func (o runFlags) stressConfig() coherence.StressConfig {
	cfg := coherence.DefaultStressConfig()
	cfg.Seed = int64(o.seed)
	cfg.MaxCycles = uint64(o.maxCycles)
	cfg.Traffic.NumOps = o.ops
	cfg.Traffic.NumLines = o.lines
	cfg.Traffic.UncachedRate = float64(o.uncachedRate) / 100

	return cfg
}

func (o runFlags) validate() error {
	if o.agents < 1 {
		return fmt.Errorf("--agents must be at least 1, got %d", o.agents)
	}

	if o.ops < 0 || o.lines < 1 {
		return fmt.Errorf("--ops must not be negative and --lines positive")
	}

	if o.uncachedRate < 0 || o.uncachedRate > 100 {
		return fmt.Errorf("--uncached-percent must be within 0 and 100")
	}

	if o.maxCycles < 1 {
		return fmt.Errorf("--max-cycles must be positive")
	}

	return nil
}

type kindLatency struct {
	kind   string
	tracer *tracing.AverageTimeTracer
}

type runTracers struct {
	latencies []kindLatency
	steps     *tracing.StepCountTracer
	db        *tracing.DBTracer
}

func (o runFlags) attachTracers(p *coherence.Platform) *runTracers {
	t := &runTracers{
		steps: tracing.NewStepCountTracer(tracing.KindIs(tracing.KindReqIn)),
	}

	for _, kind := range []string{"ReadReq", "WriteReq", "LLReq", "SCReq"} {
		tracer := tracing.NewAverageTimeTracer(p.Clock,
			tracing.WhatIs(tracing.KindReqIn, "*vci."+kind))
		tracing.CollectTrace(p.Cache, tracer)
		t.latencies = append(t.latencies, kindLatency{kind, tracer})
	}

	tracing.CollectTrace(p.Cache, t.steps)

	if o.record != "" {
		t.db = tracing.NewDBTracer(p.Clock, datarecording.New(o.record))
		tracing.CollectTrace(p.Cache, t.db)
		tracing.CollectTrace(p.Xram, t.db)

		for _, a := range p.Agents {
			tracing.CollectTrace(a, t.db)
		}
	}

	return t
}

func (o runFlags) run(out io.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}

	p := coherence.MakeBuilder().
		WithNumAgents(o.agents).
		WithCacheBuilder(o.cacheBuilder()).
		WithXramLatency(o.xramLatency).
		WithDebugLog(o.debug).
		Build()

	tracers := o.attachTracers(p)

	cfg := o.stressConfig()
	total := p.GenerateTraffic(cfg)

	if err := o.drive(p, cfg, total); err != nil {
		return err
	}

	if err := p.CheckTraffic(); err != nil {
		return err
	}

	if tracers.db != nil {
		tracers.db.Terminate()
	}

	report(out, p, tracers)

	return nil
}

func (o runFlags) drive(
	p *coherence.Platform,
	cfg coherence.StressConfig,
	total int,
) error {
	if !o.monitor && !o.openMonitor {
		return p.Run(cfg.MaxCycles)
	}

	m := monitoring.NewMonitor().WithPortNumber(o.monitorPort)
	m.RegisterClock(p.Clock)

	for _, c := range p.Components() {
		m.RegisterComponent(c)
	}

	url := m.StartServer()
	if o.openMonitor {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "cannot open %s: %s\n", url, err)
		}
	}

	bar := m.CreateProgressBar("Operations", uint64(total))
	defer m.CompleteProgressBar(bar)

	done := func() bool {
		bar.Update(uint64(p.NumCompleted()), uint64(p.NumInFlight()))
		return p.Quiescent()
	}

	if err := m.RunUntil(done, cfg.MaxCycles); err != nil {
		return err
	}

	return p.Cache.Err()
}

func report(out io.Writer, p *coherence.Platform, t *runTracers) {
	fmt.Fprintf(out, "cycles: %d\n", p.Clock.Now())
	fmt.Fprintf(out, "operations: %d\n", p.NumCompleted())

	for _, l := range t.latencies {
		if l.tracer.TotalCount() == 0 {
			continue
		}

		fmt.Fprintf(out, "latency %s: count %d, avg %.1f cycles, max %d cycles\n",
			l.kind, l.tracer.TotalCount(),
			float64(l.tracer.AverageTime())*float64(p.Clock.Freq),
			p.Clock.Freq.Cycle(l.tracer.MaxTime()))
	}

	for _, name := range t.steps.GetStepNames() {
		fmt.Fprintf(out, "step %s: %d times in %d requests\n",
			name, t.steps.GetStepCount(name), t.steps.GetTaskCount(name))
	}

	stats := structs.Map(p.Cache.Stats())
	names := make([]string, 0, len(stats))

	for name := range stats {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "stat %s: %v\n", name, stats[name])
	}

	if t.db != nil {
		fmt.Fprintf(out, "recorded tasks: %d\n", t.db.NumRecorded())
	}
}
