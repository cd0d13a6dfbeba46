// Command client runs one scenario-driven load-generation client against a
// deniable-messaging research platform, as described by SPEC_FULL.md.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/SAM-Research/test-client/internal/auth"
	"github.com/SAM-Research/test-client/internal/config"
	"github.com/SAM-Research/test-client/internal/data"
	"github.com/SAM-Research/test-client/internal/dispatch"
	"github.com/SAM-Research/test-client/internal/health"
	"github.com/SAM-Research/test-client/internal/logging"
	"github.com/SAM-Research/test-client/internal/metrics"
	"github.com/SAM-Research/test-client/internal/protocol"
	"github.com/SAM-Research/test-client/internal/scenario"
	"github.com/SAM-Research/test-client/internal/sysinfo"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal client error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: client <config>")
	}
	configPath := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	snap := sysinfo.Capture()
	logger.Info("host snapshot",
		zap.Float64("cpuPercent", snap.CPUPercent),
		zap.Float64("memoryPercent", snap.MemoryPercent),
		zap.Int("numCPU", snap.NumCPU),
	)

	disp, err := dispatch.New(cfg.DispatchAddress)
	if err != nil {
		return fmt.Errorf("build dispatch client: %w", err)
	}

	logger.Info("waiting for dispatcher health")
	if err := disp.WaitHealthy(ctx); err != nil {
		return fmt.Errorf("dispatcher unreachable: %w", err)
	}
	logger.Info("dispatcher ready")

	params, err := disp.GetScenario(ctx)
	if err != nil {
		return fmt.Errorf("fetch scenario: %w", err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	logger.Info("waiting for messaging service health")
	healthClient := health.New(cfg.Address, nil)
	if _, err := healthClient.WaitHealthy(ctx); err != nil {
		return fmt.Errorf("messaging service unreachable: %w", err)
	}
	logger.Info("messaging service ready")

	metricsRegistry := metrics.New()
	go serveMetrics(metricsRegistry, logger)

	client, err := buildProtocolClient(ctx, cfg, params, logger)
	if err != nil {
		return fmt.Errorf("build protocol client: %w", err)
	}

	signer := auth.NewSigner(cfg.CertificatePath)
	token, err := signer.SignRegistration(client.AccountID())
	if err != nil {
		return fmt.Errorf("sign registration: %w", err)
	}
	if err := disp.PostID(ctx, client.AccountID(), token); err != nil {
		return fmt.Errorf("register account id: %w", err)
	}

	startInfo, err := disp.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync start info: %w", err)
	}

	runner, err := scenario.New(params, client, startInfo, logger, metricsRegistry)
	if err != nil {
		return fmt.Errorf("build scenario runner: %w", err)
	}

	logger.Info("starting scenario")
	report := runner.Start(ctx)

	if err := disp.Upload(ctx, report); err != nil {
		return fmt.Errorf("upload report: %w", err)
	}

	logger.Info("scenario complete", zap.Int("messages", len(report.Messages)))
	return nil
}

func buildProtocolClient(ctx context.Context, cfg config.Config, params data.ScenarioParams, logger *zap.Logger) (protocol.Client, error) {
	accountID := params.Username // resolved via registration in a full deployment; username stands in as the local identity
	switch params.ClientVariant {
	case data.ClientVariantPlain:
		return protocol.DialPlain(ctx, cfg.Address, accountID, cfg.ChannelBufferSize, logger)
	case data.ClientVariantDeniable:
		return protocol.DialDeniable(ctx, cfg.Address, accountID, cfg.ChannelBufferSize, logger)
	default:
		return nil, fmt.Errorf("unknown client variant %q", params.ClientVariant)
	}
}

func serveMetrics(registry *metrics.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	if err := http.ListenAndServe("127.0.0.1:9095", mux); err != nil {
		logger.Debug("metrics server stopped", zap.Error(err))
	}
}
