package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/query"
	"github.com/spf13/cobra"
)

var (
	bugDesc      string
	bugTopK      int
	bugPatchFile string
	bugApply     bool
	bugNoStream  bool
)

var bugCmd = &cobra.Command{
	Use:   "bug [description]",
	Short: "Analyze a bug report and propose a patch",
	Long: `Retrieves the code most relevant to the bug description, asks the
LLM for an analysis and a fix, and extracts a unified diff from the
answer when one is proposed.

Examples:
  buildli bug "panic when the config file is empty"
  buildli bug --desc "..." --patch-file fix.patch
  buildli bug --desc "..." --apply`,
	RunE: runBug,
}

func init() {
	rootCmd.AddCommand(bugCmd)
	bugCmd.Flags().StringVar(&bugDesc, "desc", "", "bug description")
	bugCmd.Flags().IntVarP(&bugTopK, "top-k", "k", query.DefaultTopK, "number of chunks to retrieve")
	bugCmd.Flags().StringVar(&bugPatchFile, "patch-file", "", "write the proposed patch to this file")
	bugCmd.Flags().BoolVar(&bugApply, "apply", false, "apply the proposed patch with git apply")
	bugCmd.Flags().BoolVar(&bugNoStream, "no-stream", false, "wait for the complete analysis")
}

func runBug(cmd *cobra.Command, args []string) error {
	description := bugDesc
	if description == "" {
		description = strings.Join(args, " ")
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("a bug description is required (argument or --desc)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, err := provider.NewManager(cfg)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, mgr, store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var onChunk func(string)
	if !bugNoStream {
		onChunk = func(chunk string) { fmt.Print(chunk) }
	}

	report, err := eng.SolveBug(ctx, description, bugTopK, onChunk)
	if err != nil {
		return err
	}

	if bugNoStream {
		fmt.Println(report.Analysis)
	} else {
		fmt.Println()
	}

	if len(report.AffectedFiles) > 0 {
		fmt.Println()
		fmt.Println("Affected files:")
		for _, f := range report.AffectedFiles {
			fmt.Printf("  - %s\n", f)
		}
	}

	if report.Patch == "" {
		if bugApply || bugPatchFile != "" {
			fmt.Printf("%s the answer contains no patch\n", warnMark)
		}
		return nil
	}

	if bugPatchFile != "" {
		if err := os.WriteFile(bugPatchFile, []byte(report.Patch), 0o644); err != nil {
			return err
		}
		fmt.Printf("%s patch written to %s\n", okMark, bugPatchFile)
	}

	if bugApply {
		return applyPatch(ctx, report.Patch)
	}

	if bugPatchFile == "" {
		fmt.Println()
		fmt.Println("Proposed patch:")
		fmt.Println(report.Patch)
	}
	return nil
}

// applyPatch pipes the patch through git apply in the current directory
func applyPatch(ctx context.Context, patch string) error {
	git := exec.CommandContext(ctx, "git", "apply", "--verbose", "-")
	git.Stdin = strings.NewReader(patch)
	git.Stdout = os.Stdout
	git.Stderr = os.Stderr

	if err := git.Run(); err != nil {
		return fmt.Errorf("git apply failed: %w", err)
	}
	fmt.Printf("%s patch applied\n", okMark)
	return nil
}
