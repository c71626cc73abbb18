package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/plusserver/openstack-apimonitor/internal/alarm"
	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/execlog"
	"github.com/plusserver/openstack-apimonitor/internal/monitor"
	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
	"github.com/plusserver/openstack-apimonitor/internal/platform/objstore"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/probe"
	"github.com/plusserver/openstack-apimonitor/internal/report"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Run returns the command driving the benchmark loop.
//
// Flags:
//
//	--config, -c: Path to the configuration file (default "apimon.yaml")
//	--iterations, -n: Override the configured iteration count
func Run() *cobra.Command {
	var (
		configPath string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the provision-and-teardown benchmark loop",
		Long: `Run the benchmark loop.

Each iteration provisions the full resource chain (networks, subnets,
security groups, volumes, servers, floating IPs), waits for every batch
to converge, optionally probes the booted servers over SSH, and tears
everything down in reverse order. Latency statistics are reported at
every reporting boundary and failures raise alarms.

A first interrupt (Ctrl-C) finishes the current step and tears down
what was created; a second interrupt abandons the teardown and leaves
cleanup to 'apimon sweep'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), configPath, iterations)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "apimon.yaml", "Configuration file path")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", -1, "Iteration count override (0 = run until interrupted)")
	return cmd
}

func runMonitor(ctx context.Context, configPath string, iterations int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if iterations >= 0 {
		cfg.Iterations = iterations
	}
	log := newLogger()

	dispatchers := alarm.Multi{alarm.NewLogDispatcher(log)}
	if cfg.Alarm.SNS != nil {
		sns, err := alarm.NewSNSDispatcher(ctx, *cfg.Alarm.SNS)
		if err != nil {
			return fmt.Errorf("setting up SNS alarms: %w", err)
		}
		dispatchers = append(dispatchers, sns)
	}

	var auditLog *execlog.Log
	if cfg.ExecLog != "" {
		auditLog, err = execlog.Open(cfg.ExecLog)
		if err != nil {
			return fmt.Errorf("opening execution log: %w", err)
		}
		defer func() { _ = auditLog.Close() }()
	}

	registry := prometheus.NewRegistry()
	collector := stats.NewCollector(registry)
	if cfg.Report.MetricsAddr != "" {
		metrics := report.NewMetricsServer(cfg.Report.MetricsAddr, registry, logrus.NewEntry(log))
		metrics.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	var recorder exec.Recorder
	if auditLog != nil {
		recorder = auditLog
	}
	runner := exec.NewRunner(log, dispatchers, recorder, collector)
	runner.ErrDelay = cfg.ErrDelay.D()
	if runner.ErrDelay < 0 {
		runner.Ack = ackFromStdin()
	}

	driver, err := buildDriver(cfg)
	if err != nil {
		return err
	}

	reporter := &report.Reporter{
		Out:      os.Stdout,
		Interval: cfg.Report.Interval.D(),
		Digits:   cfg.Report.Digits,
		Log:      logrus.NewEntry(log),
	}

	mon := monitor.New(cfg, driver, runner, collector, reporter, pool.NewRemainder(), log)
	mon.ExecLog = auditLog
	mon.Interrupts = trapInterrupts(log)
	mon.Progress = orchestration.NewProgress(os.Stderr)

	if cfg.Probe.Enabled {
		prober, err := probe.NewFromKeyFile(cfg.Probe.User, cfg.Probe.KeyFile, cfg.Probe.Port, logrus.NewEntry(log))
		if err != nil {
			return fmt.Errorf("setting up SSH probe: %w", err)
		}
		mon.Prober = prober
	}

	if cfg.Objstore.Enabled {
		archiver, err := objstore.New(cfg.Objstore, logrus.NewEntry(log))
		if err != nil {
			return fmt.Errorf("setting up log archival: %w", err)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			return err
		}
		mon.Archive = archiver.ArchiveFile
	}

	return mon.Run(ctx)
}

// trapInterrupts converts SIGINT and SIGTERM into interrupt events the
// saga reads between stages. The buffer keeps a second signal from
// being lost while a stage is still running.
func trapInterrupts(log *logrus.Logger) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	interrupts := make(chan struct{}, 4)
	go func() {
		for sig := range sigCh {
			log.WithField("signal", sig.String()).Warn("signal received")
			interrupts <- struct{}{}
		}
	}()
	return interrupts
}

// ackFromStdin turns stdin lines into acknowledgements for the
// negative-errDelay pause.
func ackFromStdin() <-chan struct{} {
	ack := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			ack <- struct{}{}
		}
	}()
	return ack
}
