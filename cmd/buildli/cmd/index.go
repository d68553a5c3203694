package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/haasonsaas/buildli/internal/indexer"
	"github.com/haasonsaas/buildli/internal/provider"
	tuiprogress "github.com/haasonsaas/buildli/internal/tui/progress"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	indexWatch      bool
	indexNoProgress bool
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index source trees into the vector store",
	Long: `Indexes the given source trees into the vector store. Without
arguments the paths from [paths] index_root in the config are used.

With --watch the command keeps running and reindexes files as they
change.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep watching for file changes")
	indexCmd.Flags().BoolVar(&indexNoProgress, "no-progress", false, "disable the progress display")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Paths.IndexRoot
	}
	if len(roots) == 0 {
		return fmt.Errorf("no paths given and paths.index_root is empty")
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

	ix := newIndexer(cfg, mgr, store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var stats indexer.Stats
	if indexNoProgress || !isatty.IsTerminal(os.Stdout.Fd()) {
		stats, err = ix.IndexPaths(ctx, roots, nil)
	} else {
		stats, err = indexWithProgress(ctx, ix, roots)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s indexed %d/%d files (%d chunks)\n",
		okMark, stats.IndexedFiles, stats.TotalFiles, stats.TotalChunks)
	if stats.FailedFiles > 0 {
		fmt.Printf("%s %d file(s) failed, run with --verbose for details\n",
			warnMark, stats.FailedFiles)
	}

	if indexWatch {
		fmt.Printf("%s watching for changes (Ctrl+C to stop)\n", infoMark)
		if err := ix.Watch(ctx, roots); err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

// indexWithProgress runs IndexPaths behind the bubbletea progress display.
// The display runs in raw mode, so ctrl+c arrives as a key and only quits
// the display; the run context is canceled when the display exits, and the
// indexing goroutine is waited for before its results are read.
func indexWithProgress(ctx context.Context, ix *indexer.Indexer, roots []string, opts ...tea.ProgramOption) (indexer.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tuiprogress.New(), opts...)

	var (
		stats  indexer.Stats
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, runErr = ix.IndexPaths(ctx, roots, func(n, total int, path string) {
			p.Send(tuiprogress.FileMsg{Done: n, Total: total, Path: path})
		})
		p.Send(tuiprogress.DoneMsg{Err: runErr})
	}()

	_, uiErr := p.Run()
	cancel()
	<-done

	if uiErr != nil {
		return stats, uiErr
	}
	return stats, runErr
}
