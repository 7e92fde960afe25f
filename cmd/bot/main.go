package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"HorizonTrader/internal/collector"
	"HorizonTrader/internal/config"
	"HorizonTrader/internal/metrics"
	"HorizonTrader/internal/model"
	"HorizonTrader/internal/notifier"
	"HorizonTrader/internal/scheduler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}

	root := &cobra.Command{
		Use:           "horizon-trader",
		Short:         "Multi-horizon autonomous trading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "configuration file path")

	withApp := func(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return fn(ctx, a, cmd, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler, bot and metrics endpoint until interrupted",
			RunE:  withApp(serve),
		},
		newRunCmd(withApp),
		&cobra.Command{
			Use:   "sweep",
			Short: "Force-close positions whose timebox has elapsed",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				recs, err := a.runner.EnforceTimeboxes(ctx)
				if len(recs) > 0 {
					if perr := printJSON(cmd.OutOrStdout(), recs); perr != nil {
						return perr
					}
				}
				return err
			}),
		},
		&cobra.Command{
			Use:   "positions",
			Short: "Print the position ledger",
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
				led, err := a.ledger.Read(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), led)
			}),
		},
		newRunsCmd(withApp),
		newConfigCmd(&cfgPath),
	)
	return root
}

type appFunc = func(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newRunCmd(withApp appFunc) *cobra.Command {
	var (
		crypto  bool
		trigger string
	)
	cmd := &cobra.Command{
		Use:   "run SYMBOL",
		Short: "Run one decision cycle for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			sym := strings.ToUpper(args[0])
			rec, err := a.runner.RunOnce(ctx, sym, crypto || collector.IsCryptoSymbol(sym), trigger)
			if rec != nil {
				if perr := printJSON(cmd.OutOrStdout(), rec); perr != nil {
					return perr
				}
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&crypto, "crypto", false, "treat the symbol as a crypto pair")
	cmd.Flags().StringVar(&trigger, "trigger", model.TriggerManual, "trigger recorded with the run")
	return cmd
}

func newRunsCmd(withApp appFunc) *cobra.Command {
	var (
		symbol string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print recent run records",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			recs, err := a.runs.Recent(ctx, symbol, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		}),
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records, newest last")
	return cmd
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range cfg.Warnings() {
				fmt.Fprintln(out, "warning:", w)
			}
			fmt.Fprintf(out, "config ok: broker=%s data=%s ledger=%s\n",
				cfg.Broker.Kind, cfg.DataSource.Kind, cfg.State.LedgerBackend)
			return nil
		},
	})
	return cmd
}

func serve(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	cfg := a.cfg
	logger := a.logger

	ms := metrics.NewServer(cfg.Metrics.Addr, logger)
	ms.Start()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Runner:   a.runner,
		Ledger:   a.ledger,
		Runs:     a.runs,
		Recorder: a.recorder,
		Notifier: tn,
		Pool:     a.pool,
		Logger:   logger,
	}, scheduler.Specs{
		StocksCron:      cfg.Schedule.StocksCron,
		CryptoCron:      cfg.Schedule.CryptoCron,
		SweepCron:       cfg.Schedule.SweepCron,
		WatchlistStocks: cfg.Schedule.WatchlistStocks,
		WatchlistCrypto: cfg.Schedule.WatchlistCrypto,
		EnableCrypto:    cfg.Schedule.EnableCrypto,
	}, config.Location(cfg.Schedule.Timezone))
	if err := sched.RegisterAll(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()

	if tn.Enabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	logger.Info("horizon trader running",
		zap.String("broker", a.broker.Name()),
		zap.Strings("stocks", cfg.Schedule.WatchlistStocks),
		zap.Bool("crypto", cfg.Schedule.EnableCrypto))

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ms.Stop(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
