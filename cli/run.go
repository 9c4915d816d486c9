package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/kestrelos/preempt/config"
	"github.com/kestrelos/preempt/cpu"
	"github.com/kestrelos/preempt/irq"
	"github.com/kestrelos/preempt/sched"
	"github.com/kestrelos/preempt/sched/preempt"
	"github.com/kestrelos/preempt/sim"
	"github.com/kestrelos/preempt/stats"
	"github.com/kestrelos/preempt/trace"
)

func newRunCmd() *cobra.Command {
	var (
		flagCPUs     int
		flagPolicy   string
		flagNormal   int
		flagRealTime int
		flagPin      bool
		flagTrace    string
		flagAPI      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scheduling simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if flagConfig != "" {
				var err error
				if cfg, err = config.Load(flagConfig); err != nil {
					return err
				}
			}

			// Flags override the file.
			if cmd.Flags().Changed("cpus") {
				cfg.Sim.CPUs = flagCPUs
			}
			if cmd.Flags().Changed("policy") {
				cfg.Placement.Policy = flagPolicy
			}
			if cmd.Flags().Changed("normal-tasks") {
				cfg.Sim.NormalTasks = flagNormal
			}
			if cmd.Flags().Changed("real-time-tasks") {
				cfg.Sim.RealTimeTasks = flagRealTime
			}
			if cmd.Flags().Changed("pin") {
				cfg.Sim.Pin = flagPin
			}
			if cmd.Flags().Changed("trace") {
				cfg.Trace.Enabled = flagTrace != ""
				cfg.Trace.Path = flagTrace
			}
			if cmd.Flags().Changed("api-addr") {
				cfg.API.Enabled = flagAPI != ""
				cfg.API.Addr = flagAPI
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runSimulation(cmd, cfg)
		},
	}

	cmd.Flags().IntVar(&flagCPUs, "cpus", 2, "Number of simulated processors")
	cmd.Flags().StringVar(&flagPolicy, "policy", "roundrobin", "Placement policy name")
	cmd.Flags().IntVar(&flagNormal, "normal-tasks", 8, "Number of normal-class tasks")
	cmd.Flags().IntVar(&flagRealTime, "real-time-tasks", 2, "Number of real-time tasks")
	cmd.Flags().BoolVar(&flagPin, "pin", false, "Pin dispatch threads to host CPUs")
	cmd.Flags().StringVar(&flagTrace, "trace", "", "Write a SQLite event trace to this path")
	cmd.Flags().StringVar(&flagAPI, "api-addr", "", "Serve stats over HTTP on this address")

	return cmd
}

func runSimulation(cmd *cobra.Command, cfg config.Config) error {
	topo := cpu.NewSystemTopology(0)
	irqc := irq.NewController(cfg.Sim.CPUs)

	policy, err := preempt.NewPolicy(cfg.Placement.Policy)
	if err != nil {
		return err
	}

	s, err := preempt.New(preempt.Options{
		NumCPUs:      cfg.Sim.CPUs,
		QuantumTicks: cfg.Scheduler.QuantumTicks,
		Policy:       policy,
		IRQ:          irqc,
		CurrentCPU:   topo.CurrentCPU,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	// First run in this process installs the singleton; later runs keep
	// driving their own instance directly.
	if err := sched.Inject(s); err != nil {
		logger.Warn("scheduler already injected", "error", err)
	}

	var rec trace.Recorder = trace.Nop{}
	if cfg.Trace.Enabled {
		sqlRec, err := trace.NewSQLiteRecorder(cfg.Trace.Path, logger)
		if err != nil {
			return err
		}
		defer sqlRec.Close()
		logger.Info("tracing enabled", "path", cfg.Trace.Path, "run_id", sqlRec.RunID())
		rec = sqlRec
	}

	if cfg.API.Enabled {
		srv := stats.NewServer(cfg.API.Addr, s, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("stats server failed", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	simulation, err := sim.New(sim.Options{
		CPUs:          cfg.Sim.CPUs,
		TickInterval:  time.Duration(cfg.Sim.TickIntervalUs) * time.Microsecond,
		Duration:      time.Duration(cfg.Sim.DurationMs) * time.Millisecond,
		NormalTasks:   cfg.Sim.NormalTasks,
		RealTimeTasks: cfg.Sim.RealTimeTasks,
		WorkTicks:     cfg.Sim.WorkTicks,
		BlockEvery:    cfg.Sim.BlockEvery,
		Pin:           cfg.Sim.Pin,
		Logger:        logger,
		Recorder:      rec,
	}, s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := simulation.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	body, err := sonnet.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
