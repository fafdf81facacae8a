package main

import (
	"fmt"
	"os"

	"github.com/gartstein/hrm/internal/contract/legacy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOptions struct {
	input    string
	apply    bool
	backfill bool
}

func newImportCmd(global *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy contracts from an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(opts.input)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, bad, err := legacy.ReadRows(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", opts.input, err)
			}

			env, cleanup, err := setup(global)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, b := range bad {
				env.logger.Warn("unreadable legacy row", zap.Int("line", b.Line), zap.Error(b.Err))
			}

			report, err := env.importer.Import(cmd.Context(), rows, env.actor, opts.apply)
			if err != nil {
				return err
			}
			report.Total += len(bad)
			report.Failed = append(bad, report.Failed...)
			printReport(cmd, "import", report)

			if opts.backfill {
				report, err = env.importer.Backfill(cmd.Context(), env.actor, opts.apply)
				if err != nil {
					return err
				}
				printReport(cmd, "backfill", report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Input xlsx workbook (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().BoolVar(&opts.backfill, "backfill", false, "Backfill employment periods and insurance profiles after importing")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func newRunCmd(global *globalOptions) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backfill employment periods and insurance profiles for legacy contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := setup(global)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := env.importer.Backfill(cmd.Context(), env.actor, apply)
			if err != nil {
				return err
			}
			printReport(cmd, "backfill", report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply changes to DB (default is dry-run)")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty import workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return legacy.WriteTemplate(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := legacy.WriteTemplate(f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
