package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/haasonsaas/buildli/internal/config"
	"github.com/haasonsaas/buildli/internal/provider"
	coregrpc "github.com/haasonsaas/buildli/pkg/core/grpc"
	"github.com/spf13/cobra"
)

// probeTimeout bounds the gRPC readiness wait
const probeTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check server and provider connectivity",
	Long: `Checks whether the buildli server is reachable.

Opens a gRPC channel to the configured endpoint and waits up to five
seconds for it to become ready, then checks the HTTP health endpoint
and the configured LLM providers. An unreachable server is reported
but is not an error.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("buildli status")
	fmt.Println("==============")
	fmt.Println()

	grpcTarget := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1)
	fmt.Printf("Attempting to connect to %s...\n", grpcTarget)

	if err := coregrpc.Probe(grpcTarget, probeTimeout); err != nil {
		fmt.Printf("%s could not connect within %s\n", warnMark, probeTimeout)
		fmt.Println("    start the server with: buildli serve --port 9090")
	} else {
		fmt.Printf("%s gRPC channel is ready\n", okMark)
		fmt.Println("    server running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checkHTTPHealth(ctx, cfg.Server.Host, cfg.Server.Port)
	checkProviders(ctx, cfg)

	// Connectivity problems are reported above, not returned: the command
	// exits zero unless the check itself could not run.
	return nil
}

func checkHTTPHealth(ctx context.Context, host string, port int) {
	url := fmt.Sprintf("http://%s:%d/health", host, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Printf("%s HTTP health: %v\n", failMark, err)
		return
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("%s HTTP health endpoint not reachable\n", warnMark)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("%s HTTP health endpoint healthy\n", okMark)
	} else {
		fmt.Printf("%s HTTP health endpoint returned %d\n", warnMark, resp.StatusCode)
	}
}

func checkProviders(ctx context.Context, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Providers:")

	mgr, err := provider.NewManager(cfg)
	if err != nil {
		fmt.Printf("  %s %v\n", warnMark, err)
		return
	}

	results := mgr.HealthCheck(ctx, 3*time.Second)
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := results[name]; err != nil {
			fmt.Printf("  %s %-10s %v\n", failMark, name, err)
		} else {
			fmt.Printf("  %s %-10s reachable\n", okMark, name)
		}
	}
}
