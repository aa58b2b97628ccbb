package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourorg/attendbot/internal/access"
	"github.com/yourorg/attendbot/internal/bot"
	"github.com/yourorg/attendbot/internal/export"
	"github.com/yourorg/attendbot/internal/identity"
	"github.com/yourorg/attendbot/internal/leave"
	"github.com/yourorg/attendbot/internal/ledger"
)

var configPath string

func main() {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "attendbot",
		Short: "Attendance and paid-leave chat bot backend",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.AddCommand(serveCmd(), resortCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (bot.Config, error) {
	return bot.LoadConfigFile(bot.LoadConfig(), configPath)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := slog.Default()

			resolver := identity.NewHTTPResolver(cfg.ResolverBaseURL)
			accessStore := ledger.NewFileStore(cfg.AccessDir, access.Header)
			leaveStore := ledger.NewFileStore(cfg.LeaveDir, leave.Header)

			accessSvc := access.NewService(accessStore, resolver, logger)
			leaveSvc := leave.NewService(leaveStore, cfg.ResortDelay, logger)
			exportSvc := export.NewService([]export.SourceDir{
				{Name: "access", Path: cfg.AccessDir},
				{Name: "paidleave", Path: cfg.LeaveDir},
			}, cfg.ExportDir, cfg.ExportRetention, cfg.ExportCooldown, export.NewMemoryAuditRecorder(), logger)
			handler := bot.NewHandler(accessSvc, leaveSvc, exportSvc, resolver, bot.NewSessions(cfg.SessionTTL), logger)

			logger.Info("attendbot listening", "addr", cfg.Addr)
			if err := http.ListenAndServe(cfg.Addr, handler.Router()); err != nil {
				logger.Error("server stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func resortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resort [actor]",
		Short: "Sort leave ledgers by date and recompute running balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			leaveStore := ledger.NewFileStore(cfg.LeaveDir, leave.Header)
			leaveSvc := leave.NewService(leaveStore, cfg.ResortDelay, slog.Default())

			if len(args) == 1 {
				return leaveSvc.Resort(args[0])
			}
			return leaveSvc.ResortAll()
		},
	}
}
