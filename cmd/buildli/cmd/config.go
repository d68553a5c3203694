package cmd

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/buildli/internal/config"
	"github.com/spf13/cobra"
)

var (
	configSets  []string
	configPrint bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration",
	Long: `Without flags prints the effective configuration and where it was
loaded from.

--set writes dotted keys back to the config file:
  buildli config --set llm.model=gpt-4o
  buildli config --set server.port=8080 --set vector.backend=memory`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringArrayVar(&configSets, "set", nil, "set a key=value pair")
	configCmd.Flags().BoolVar(&configPrint, "print", false, "print the effective configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := configPath()

	if len(configSets) > 0 {
		for _, kv := range configSets {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --set %q, want key=value", kv)
			}
			if err := config.Set(cfg, key, value); err != nil {
				return err
			}
		}
		if err := config.SaveFile(cfg, path); err != nil {
			return err
		}
		fmt.Printf("%s wrote %s\n", okMark, path)
	}

	if configPrint || len(configSets) == 0 {
		dump, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n\n%s", path, dump)
	}
	return nil
}
