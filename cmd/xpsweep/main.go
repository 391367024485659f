package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/ledger"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/presets"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/runner"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/status"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/sweep"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/config"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], stdout)
	case "plan":
		return runPlan(ctx, args[1:], stdout)
	case "presets":
		return runPresets(ctx, args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: xpsweep <run|plan|presets> [flags]", msg)
}

// sweepFlags are shared by run and plan
type sweepFlags struct {
	configPath string
	preset     string
	stages     string
	logLevel   string
	logFormat  string
	logFile    string
}

func (f *sweepFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "sweep file (YAML)")
	fs.StringVar(&f.preset, "preset", "", "name of an embedded sweep (list them with: xpsweep presets)")
	fs.StringVar(&f.stages, "stages", "", "comma separated stages to run (default: enabled stages)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the sweep file")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format on stderr (text, json)")
	fs.StringVar(&f.logFile, "log-file", "", "also write JSON logs to this file")
}

func (f *sweepFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case f.configPath != "" && f.preset != "":
		return nil, errors.New("use either -config or -preset, not both")
	case f.configPath != "":
		cfg, err = config.LoadConfig(f.configPath)
	case f.preset != "":
		cfg, err = presets.Load(f.preset)
	default:
		return nil, errors.New("a sweep is required: pass -config or -preset")
	}
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func (f *sweepFlags) selectStages(cfg *config.Config) ([]*sweep.Stage, error) {
	all, err := sweep.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range strings.Split(f.stages, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return sweep.Select(cfg, all, names)
}

// setupLogger installs the default logger. The returned func closes the
// log file, if any.
func (f *sweepFlags) setupLogger(cfg *config.Config) (func(), error) {
	if f.logFormat != "text" && f.logFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", f.logFormat)
	}

	outputs := []io.Writer{os.Stderr}
	closeFn := func() {}
	if f.logFile != "" {
		if dir := filepath.Dir(f.logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		outputs = append(outputs, file)
		closeFn = func() { _ = file.Close() }
	}

	logger.SetDefault(logger.NewFanout(f.logFormat, cfg.LogLevel, outputs...))
	return closeFn, nil
}

func runRun(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common sweepFlags
	common.register(fs)
	maxParallel := fs.Int("max-parallel", 0, "maximum concurrent invocations (default: from the sweep file)")
	failurePolicy := fs.String("failure-policy", "", "continue or abort (default: from the sweep file)")
	dryRun := fs.Bool("dry-run", false, "print command lines instead of running them")
	ledgerKind := fs.String("ledger", "memory", "invocation ledger backend: memory|sqlite")
	dbPath := fs.String("db-path", "xpsweep.db", "sqlite ledger path")
	manifest := fs.String("manifest", "", "CSV manifest path (default: from the sweep file)")
	sweepID := fs.String("sweep-id", "", "sweep id (default: generated)")
	httpAddr := fs.String("http-addr", "", "serve HTTP status on this address")
	grpcAddr := fs.String("grpc-addr", "", "serve gRPC health and progress on this address")
	notifyURL := fs.String("notify-url", "", "POST the summary to this URL when the sweep ends")
	notifySecret := fs.String("notify-secret", "", "value of the X-Sweep-Callback-Secret header")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	if *maxParallel != 0 {
		cfg.MaxParallel = *maxParallel
	}
	if *failurePolicy != "" {
		cfg.FailurePolicy = *failurePolicy
	}
	if *manifest != "" {
		cfg.Manifest = *manifest
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	stages, err := common.selectStages(cfg)
	if err != nil {
		return err
	}
	closeLog, err := common.setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := ledger.NewStore(*ledgerKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ledger.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	policy, err := runner.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return err
	}
	timeout, err := cfg.GetInvocationTimeout()
	if err != nil {
		return err
	}

	var executor runner.Executor = &runner.ProcessExecutor{
		Dir:     cfg.Workdir,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Timeout: timeout,
	}
	if *dryRun {
		executor = runner.DryRunExecutor{Out: stdout}
	}

	driver := runner.NewDriver(executor, store).
		WithMaxParallel(cfg.MaxParallel).
		WithFailurePolicy(policy).
		WithSweepID(*sweepID)

	if cfg.Manifest != "" && !*dryRun {
		m, err := runner.OpenManifest(cfg.Manifest)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				logger.Warn("failed to close manifest", "error", err)
			}
		}()
		driver.WithManifest(m)
	}

	servers, err := startStatusServers(*httpAddr, *grpcAddr, driver, store)
	if err != nil {
		return err
	}
	defer servers.shutdown()

	summary, runErr := driver.Run(ctx, stages)
	servers.setServing(false)

	fmt.Fprint(stdout, summary.String())

	if *notifyURL != "" {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()
		n := status.NewNotifier().WithSecret(*notifySecret)
		if err := n.Notify(notifyCtx, *notifyURL, summary, runErr); err != nil {
			logger.Error("failed to deliver notification", "error", err)
		}
	}

	return runErr
}

type statusServers struct {
	httpSrv *http.Server
	grpcSrv *grpc.Server
	health  *status.GRPCServer
}

func startStatusServers(httpAddr, grpcAddr string, driver *runner.Driver, store ledger.Store) (*statusServers, error) {
	s := &statusServers{}

	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for gRPC on %s: %w", grpcAddr, err)
		}
		s.grpcSrv = grpc.NewServer()
		s.health = status.NewGRPCServer(driver)
		s.health.Register(s.grpcSrv)
		s.health.SetServing(true)
		go func() {
			logger.Info("gRPC server listening", "addr", lis.Addr().String())
			if err := s.grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}

	if httpAddr != "" {
		lis, err := net.Listen("tcp", httpAddr)
		if err != nil {
			s.shutdown()
			return nil, fmt.Errorf("failed to listen for HTTP on %s: %w", httpAddr, err)
		}
		s.httpSrv = &http.Server{
			Handler:           status.NewHTTPServer(driver, store).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", lis.Addr().String())
			if err := s.httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}

	return s, nil
}

func (s *statusServers) setServing(serving bool) {
	if s.health != nil {
		s.health.SetServing(serving)
	}
}

func (s *statusServers) shutdown() {
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
}

func runPlan(_ context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	var common sweepFlags
	common.register(fs)
	countOnly := fs.Bool("count", false, "only print the number of invocations per stage")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	stages, err := common.selectStages(cfg)
	if err != nil {
		return err
	}
	closeLog, err := common.setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	total := 0
	for _, st := range stages {
		fmt.Fprintf(stdout, "# %s (%s): %d invocations\n", st.Name, st.Mode, st.Total())
		total += st.Total()
		if *countOnly {
			continue
		}
		for inv, err := range st.Invocations() {
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, inv.Command())
		}
	}
	fmt.Fprintf(stdout, "# total: %d invocations\n", total)
	return nil
}

func runPresets(_ context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("presets", flag.ContinueOnError)
	show := fs.String("show", "", "print the YAML of this preset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *show != "" {
		data, err := presets.Raw(*show)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	for _, name := range presets.List() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}
