package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/scanhub/pkg/config"
	"github.com/user/scanhub/pkg/enrich"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (gateway, providers, models, keys)",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Manually set API key for a provider",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		deployment, _ := cmd.Flags().GetString("deployment")

		if provider == "" || key == "" {
			fmt.Println("Error: --provider and --key are required")
			return
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		name := strings.ToLower(provider)
		cfg.SetAPIKey(name, key)
		if endpoint != "" || deployment != "" {
			pc := cfg.Providers[name]
			if endpoint != "" {
				pc.Endpoint = endpoint
			}
			if deployment != "" {
				pc.Deployment = deployment
			}
			cfg.Providers[name] = pc
		}

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("API key saved for provider: %s\n", provider)
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Manually set the active provider and model",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if provider != "" {
			cfg.SelectedProvider = strings.ToLower(provider)
		}
		if model != "" {
			cfg.SelectedModel = model
		}

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Active configuration updated: Provider=%s, Model=%s\n", cfg.SelectedProvider, cfg.SelectedModel)
	},
}

var setGatewayCmd = &cobra.Command{
	Use:   "set-gateway",
	Short: "Set the scan gateway base URL",
	Run: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		intervalMS, _ := cmd.Flags().GetInt("poll-interval-ms")

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if url != "" {
			cfg.Gateway.BaseURL = url
		}
		if intervalMS > 0 {
			cfg.Gateway.PollIntervalMS = intervalMS
		}

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Gateway updated: %s (poll every %dms)\n", cfg.Gateway.BaseURL, cfg.Gateway.PollIntervalMS)
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		fmt.Printf("Provider: %s\n", cfg.SelectedProvider)
		fmt.Printf("Model:    %s\n", cfg.SelectedModel)
		fmt.Printf("Gateway:  %s (poll every %dms)\n", cfg.Gateway.BaseURL, cfg.Gateway.PollIntervalMS)
		if cfg.AdapterOverrides != "" {
			fmt.Printf("Adapter overrides: %s\n", cfg.AdapterOverrides)
		}
		for name, pc := range cfg.Providers {
			key := "not set"
			if pc.APIKey != "" {
				key = "set"
			}
			fmt.Printf("  %s: key %s", name, key)
			if pc.Endpoint != "" {
				fmt.Printf(", endpoint %s", pc.Endpoint)
			}
			if pc.Deployment != "" {
				fmt.Printf(", deployment %s", pc.Deployment)
			}
			fmt.Println()
		}
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Println("Error loading config:", err)
			return
		}

		provider := cfg.SelectedProvider
		if provider == "" {
			fmt.Println("No provider selected. Run 'scanhub config set-model' first.")
			return
		}
		if cfg.GetAPIKey(provider) == "" {
			fmt.Printf("No API key found for %s.\n", provider)
			return
		}

		fmt.Printf("Fetching models for %s...\n", provider)
		ctx := context.Background()
		p, err := enrich.NewProvider(ctx, cfg)
		if err != nil {
			fmt.Println("Error initializing provider:", err)
			return
		}

		models, err := p.ListModels(ctx)
		if err != nil {
			fmt.Println("Error fetching models:", err)
			return
		}

		fmt.Printf("\nAvailable Models (%s):\n", provider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

func init() {
	setKeyCmd.Flags().StringP("provider", "p", "", "Provider (gemini, openai, azure)")
	setKeyCmd.Flags().StringP("key", "k", "", "API Key")
	setKeyCmd.Flags().String("endpoint", "", "Service endpoint (azure only)")
	setKeyCmd.Flags().String("deployment", "", "Deployment name (azure only)")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider (gemini, openai, azure)")
	setModelCmd.Flags().StringP("model", "m", "", "Model name")

	setGatewayCmd.Flags().String("url", "", "Gateway base URL")
	setGatewayCmd.Flags().Int("poll-interval-ms", 0, "Log polling interval in milliseconds")

	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setGatewayCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(configCmd)
}
