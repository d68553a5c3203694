package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/query"
	"github.com/spf13/cobra"
)

var (
	queryTopK     int
	queryJSON     bool
	queryNoStream bool
	queryRepos    []string
	queryLangs    []string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about the indexed code",
	Long: `Searches the vector store for code relevant to the question and
answers with the LLM, grounded on the retrieved chunks.

Examples:
  buildli query "where is the config file loaded?"
  buildli query -k 5 --lang go "how does auth work?"
  buildli query --json "what does the indexer cache?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", query.DefaultTopK, "number of chunks to retrieve")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the answer as JSON")
	queryCmd.Flags().BoolVar(&queryNoStream, "no-stream", false, "wait for the complete answer")
	queryCmd.Flags().StringSliceVar(&queryRepos, "repo", nil, "restrict results to these repos")
	queryCmd.Flags().StringSliceVar(&queryLangs, "lang", nil, "restrict results to these languages")
}

func runQuery(cmd *cobra.Command, args []string) error {
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
	filters := query.Filters{Repos: queryRepos, Languages: queryLangs}
	question := strings.Join(args, " ")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if queryJSON {
		answer, err := eng.Query(ctx, question, queryTopK, filters)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"answer":     answer.Text,
			"references": answer.References,
		})
	}

	var answer *query.Answer
	if queryNoStream {
		answer, err = eng.Query(ctx, question, queryTopK, filters)
		if err != nil {
			return err
		}
		fmt.Println(answer.Text)
	} else {
		answer, err = eng.QueryStream(ctx, question, queryTopK, filters, func(chunk string) {
			fmt.Print(chunk)
		})
		if err != nil {
			return err
		}
		fmt.Println()
	}

	printReferences(answer.References)
	return nil
}

func printReferences(refs []query.Reference) {
	if len(refs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("References:")
	for i, r := range refs {
		fmt.Printf("  %d. %s:%d-%d (score %.2f)\n",
			i+1, r.FilePath, r.LineStart, r.LineEnd, r.Score)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
