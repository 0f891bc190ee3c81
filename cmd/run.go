package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/forum-rewards/rewarder/internal/config"
	"github.com/forum-rewards/rewarder/internal/logger"
	"github.com/forum-rewards/rewarder/internal/tracer"
	"github.com/forum-rewards/rewarder/internal/version"
	"github.com/forum-rewards/rewarder/pkg/allocationPlanner"
	"github.com/forum-rewards/rewarder/pkg/clients/forum"
	"github.com/forum-rewards/rewarder/pkg/clients/ledger"
	"github.com/forum-rewards/rewarder/pkg/clients/notifier"
	"github.com/forum-rewards/rewarder/pkg/executor"
	"github.com/forum-rewards/rewarder/pkg/ledgerReader"
	"github.com/forum-rewards/rewarder/pkg/metrics"
	"github.com/forum-rewards/rewarder/pkg/pipeline"
	"github.com/forum-rewards/rewarder/pkg/reconciler"
	"github.com/forum-rewards/rewarder/pkg/report"
	"github.com/forum-rewards/rewarder/pkg/snapshotNormalizer"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single reconciliation and exit",
	Run: func(cmd *cobra.Command, args []string) {
		initSubCommand(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		runId := uuid.New().String()
		l.Sugar().Infow("rewarder run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("runId", runId),
			zap.Bool("dryRun", cfg.AllocationConfig.DryRun),
		)

		stopTracer := tracer.StartTracer(cfg.DataDogConfig.TracingConfig.Enabled, runId)
		defer stopTracer()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cfg.RunConfig.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RunConfig.Timeout)
			defer cancel()
		}

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, runId, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}
		defer sink.Flush()

		forumClient := forum.NewClient(&forum.ClientConfig{
			BaseUrl:     cfg.ForumConfig.BaseUrl,
			UsersPath:   cfg.ForumConfig.UsersPath,
			ApiKey:      cfg.ForumConfig.ApiKey,
			ApiUsername: cfg.ForumConfig.ApiUsername,
			MaxPages:    cfg.ForumConfig.MaxPages,
		}, forum.DefaultHttpClient(cfg.ForumConfig.Timeout), l)

		ledgerClient, err := ledger.Dial(ctx, &ledger.ClientConfig{
			RpcUrl:          cfg.LedgerConfig.RpcUrl,
			ChainId:         cfg.LedgerConfig.ChainId,
			ContractAddress: cfg.GetContractAddress(),
			TokenAddress:    cfg.GetTokenAddress(),
			PrivateKey:      cfg.LedgerConfig.PrivateKey,
		}, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to connect to the ledger", zap.Error(err))
		}

		var n notifier.Notifier
		if cfg.NotifierConfig.WebhookUrl != "" {
			n = notifier.NewWebhookNotifier(cfg.NotifierConfig.WebhookUrl, notifier.DefaultHttpClient(), l)
		} else {
			n = notifier.NewNoopNotifier(l)
		}

		reader := ledgerReader.NewLedgerReader(ledgerClient, &ledgerReader.LedgerReaderConfig{
			ReadConcurrency: cfg.LedgerConfig.ReadConcurrency,
			ReadsPerSecond:  cfg.LedgerConfig.ReadsPerSecond,
		}, l)
		if cfg.RunConfig.Progress {
			reader.SetProgressReporter(progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("reading ledger"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			))
		}

		planner := allocationPlanner.NewAllocationPlanner(reader, &allocationPlanner.AllocationPlannerConfig{
			CountMode:     cfg.AllocationConfig.CountMode,
			LedgerAddress: ledgerClient.Address(),
		}, l)

		reporter := executor.NewReporter(n, &executor.ReporterConfig{
			TokenDecimals:  cfg.LedgerConfig.TokenDecimals,
			TransactionUrl: cfg.GetTransactionUrl,
		}, sink, l)

		ex := executor.NewExecutor(ledgerClient, planner, reporter, sink, &executor.ExecutorConfig{
			DryRun: cfg.AllocationConfig.DryRun,
		}, l)

		p := pipeline.NewPipeline(
			forumClient,
			snapshotNormalizer.NewSnapshotNormalizer(l),
			reader,
			reconciler.NewReconciler(reader, l),
			planner,
			ex,
			reporter,
			cfg,
			sink,
			l,
		)

		result := p.Run(ctx, runId)

		if cfg.RunConfig.ReportFile != "" {
			format, err := report.ParseFormat(cfg.RunConfig.ReportFormat)
			if err != nil {
				l.Sugar().Errorw("Invalid report format", zap.Error(err))
			} else if err := report.WriteFile(cfg.RunConfig.ReportFile, format, result); err != nil {
				l.Sugar().Errorw("Failed to write run report", zap.Error(err))
			} else {
				l.Sugar().Infow("Wrote run report", zap.String("path", cfg.RunConfig.ReportFile))
			}
		}

		if !result.Succeeded() {
			l.Sugar().Errorw("Run did not succeed",
				zap.String("runId", result.RunId),
				zap.String("status", string(result.Status)),
				zap.Int("completed", len(result.Completed)),
				zap.Error(result.Error),
			)
			sink.Flush()
			os.Exit(1)
		}
	},
}
