// Command backfill migrates contracts kept outside the workflow and derives
// employment periods and insurance profiles for them. Every subcommand that
// writes is a dry run unless --apply is given.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gartstein/hrm/internal/contract/config"
	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/employment"
	"github.com/gartstein/hrm/internal/contract/grade"
	"github.com/gartstein/hrm/internal/contract/insurance"
	"github.com/gartstein/hrm/internal/contract/legacy"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalOptions struct {
	configPath string
	actor      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "backfill",
		Short:         "Migrate legacy contracts and backfill employment history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $HRM_CONFIG or the bundled config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.actor, "actor", "", "User UUID recorded as the author of created records")

	cmd.AddCommand(newImportCmd(&opts), newRunCmd(&opts), newTemplateCmd())
	return cmd
}

// env is what a writing subcommand needs, built from the global options.
type env struct {
	logger   *zap.Logger
	repo     *db.Repository
	importer *legacy.Importer
	actor    *uuid.UUID
}

func setup(opts *globalOptions) (*env, func(), error) {
	var actor *uuid.UUID
	if s := strings.TrimSpace(opts.actor); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --actor: %w", err)
		}
		actor = &id
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if cfg.LogDevelopment {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	detector := grade.NewDetector(logger, cfg.MaxDeviation())
	versioner := insurance.NewVersioner(logger, detector, insurance.Config{
		DefaultRegion: cfg.DefaultRegion,
		DefaultGrade:  cfg.DefaultGrade,
	})
	importer := legacy.NewImporter(repo, logger, employment.NewResolver(logger), versioner)

	cleanup := func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return &env{logger: logger, repo: repo, importer: importer, actor: actor}, cleanup, nil
}

func printReport(cmd *cobra.Command, title string, r legacy.Report) {
	out := cmd.OutOrStdout()
	mode := "dry-run"
	if r.Applied {
		mode = "applied"
	}
	fmt.Fprintf(out, "%s (%s)\n", title, mode)
	fmt.Fprintf(out, "  total:      %d\n", r.Total)
	fmt.Fprintf(out, "  imported:   %d\n", r.Imported)
	fmt.Fprintf(out, "  skipped:    %d\n", r.Skipped)
	fmt.Fprintf(out, "  attached:   %d\n", r.Attached)
	fmt.Fprintf(out, "  backfilled: %d\n", r.Backfilled)
	fmt.Fprintf(out, "  failed:     %d\n", len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(out, "    %s\n", f.Error())
	}
}
