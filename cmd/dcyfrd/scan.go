package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dcyfr/dcyfr-ai-cli/internal/ai"
	"github.com/dcyfr/dcyfr-ai-cli/internal/scanner"
	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan [scanner-id]",
	Short: "Run scanners directly and print their results",
	Long: `Run one scanner (or all of them) against the workspace without going
through the daemon's queue.

Examples:
  # Run every scanner
  dcyfrd scan

  # Run one scanner
  dcyfrd scan license-headers

  # Apply auto-fixes for a scanner's findings
  dcyfrd scan license-headers --fix

  # Preview fixes without touching files
  dcyfrd scan license-headers --fix --dry-run`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := resolveWorkspace()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		applyFix, _ := cmd.Flags().GetBool("fix")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		verbose, _ := cmd.Flags().GetBool("verbose")
		project, _ := cmd.Flags().GetString("project")

		registry := scanner.NewRegistry()
		if err := scanner.RegisterBuiltins(registry, ai.NewFromEnv()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sc := types.ScanContext{
			WorkspaceRoot: root,
			Project:       project,
			DryRun:        dryRun,
			Verbose:       verbose,
		}
		ctx := context.Background()

		var results []*types.ScanResult
		if len(args) == 1 {
			result, err := registry.Run(ctx, args[0], sc)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			results = append(results, result)
		} else {
			results = registry.RunAll(ctx, sc)
		}

		failed := false
		for _, r := range results {
			printResult(r, verbose)
			if r.Status == types.StatusFail || r.Status == types.StatusError {
				failed = true
			}
			if applyFix && len(r.Violations) > 0 {
				runFix(ctx, registry, r, sc)
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	scanCmd.Flags().Bool("fix", false, "apply auto-fixes for fixable violations")
	scanCmd.Flags().Bool("dry-run", false, "report fixes without applying them")
	scanCmd.Flags().BoolP("verbose", "v", false, "print every finding")
	scanCmd.Flags().String("project", "", "scope to one project")
}

func printResult(r *types.ScanResult, verbose bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	icon := gray("○")
	switch r.Status {
	case types.StatusPass:
		icon = green("✓")
	case types.StatusWarn:
		icon = yellow("⚠")
	case types.StatusFail, types.StatusError:
		icon = red("✗")
	}
	fmt.Printf("%s %-18s %s %s\n", icon, r.Scanner, r.Summary, gray(fmt.Sprintf("(%dms)", r.DurationMS)))

	if verbose {
		for _, v := range r.Violations {
			fmt.Printf("    %s %s:%d %s\n", red("error"), v.File, v.Line, v.Message)
		}
		for _, w := range r.Warnings {
			fmt.Printf("    %s %s:%d %s\n", yellow(string(w.Severity)), w.File, w.Line, w.Message)
		}
	}
}

func runFix(ctx context.Context, registry *scanner.Registry, r *types.ScanResult, sc types.ScanContext) {
	fix, err := registry.Fix(ctx, r.Scanner, sc, r.Violations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: fix skipped for %s: %v\n", r.Scanner, err)
		return
	}
	fmt.Printf("    fix: %s\n", fix.Summary)
}
