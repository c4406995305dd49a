package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/scanhub/pkg/config"
	"github.com/user/scanhub/pkg/enrich"
	"github.com/user/scanhub/pkg/logging"
	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/poller"
	"github.com/user/scanhub/pkg/registry"
	"github.com/user/scanhub/pkg/remote"
	"github.com/user/scanhub/pkg/session"
	"github.com/user/scanhub/pkg/store"
)

var (
	scanTools    string
	scanSubject  string
	scanNoEnrich bool
	scanWait     bool
	snapshotOut  string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run scans against a subject with the configured tools",
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.L()

		if scanSubject == "" {
			fmt.Println("Error: --subject is required (e.g. octocat/hello-world)")
			return
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		if cfg.AdapterOverrides != "" {
			if err := registry.ApplyOverrides(cfg.AdapterOverrides); err != nil {
				fmt.Printf("Error applying adapter overrides: %v\n", err)
				return
			}
		}
		if err := registry.Validate(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		tools, err := parseTools(scanTools)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		st := store.New()
		sessions := session.NewManager()

		var enricher poller.Enricher
		if !scanNoEnrich {
			provider, err := enrich.NewProvider(ctx, cfg)
			if err != nil {
				fmt.Printf("Warning: enrichment disabled: %v\n", err)
			} else {
				enrichEngine := enrich.New(provider, st)
				enricher = enrichEngine

				// Hot-reload: a provider/model change in the config file
				// applies to later enrichment batches without a restart.
				if path, err := config.GetConfigPath(); err == nil {
					stopWatch, err := config.Watch(path, func(fresh *config.Config) {
						p, err := enrich.NewProvider(ctx, fresh)
						if err != nil {
							log.Warnw("config reloaded but provider unusable", "error", err)
							return
						}
						enrichEngine.SetProvider(p)
						log.Infow("enrichment provider reloaded", "provider", fresh.SelectedProvider, "model", fresh.SelectedModel)
					})
					if err == nil {
						defer stopWatch()
					}
				}
			}
		}

		client := remote.NewClient(cfg.Gateway.BaseURL)
		interval := time.Duration(cfg.Gateway.PollIntervalMS) * time.Millisecond
		engine := poller.New(client, st, sessions, enricher, interval)

		for _, tool := range tools {
			sessions.For(tool).Subscribe(func(snap session.Snapshot) {
				log.Infow("session", "tool", snap.Tool, "phase", snap.Phase, "task", snap.TaskID)
			})
		}

		var wg sync.WaitGroup
		for _, tool := range tools {
			tool := tool
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := engine.Run(ctx, tool, scanSubject); err != nil {
					log.Errorw("scan failed", "tool", tool, "error", err)
				}
			}()
		}
		wg.Wait()

		if scanWait {
			engine.WaitEnrichment()
		}

		printReport(st, sessions, tools)

		if snapshotOut != "" {
			if err := st.SaveSnapshot(snapshotOut); err != nil {
				fmt.Printf("Error saving snapshot: %v\n", err)
				return
			}
			fmt.Printf("Saved %d findings to snapshot '%s'.\n", st.Len(), snapshotOut)
		}
	},
}

func parseTools(list string) ([]model.ToolKind, error) {
	if list == "" || list == "all" {
		return registry.Tools(), nil
	}
	known := make(map[model.ToolKind]bool)
	for _, t := range registry.Tools() {
		known[t] = true
	}
	var out []model.ToolKind
	for _, part := range strings.Split(list, ",") {
		kind := model.ToolKind(strings.TrimSpace(strings.ToLower(part)))
		if !known[kind] {
			return nil, fmt.Errorf("unknown tool %q (known: scanner, compliance, pipeline)", part)
		}
		out = append(out, kind)
	}
	return out, nil
}

func printReport(st *store.Store, sessions *session.Manager, tools []model.ToolKind) {
	fmt.Println("\n--------------------------------------------------")
	for _, tool := range tools {
		snap := sessions.For(tool).Snapshot()
		fmt.Printf("%-10s %s", tool, snap.Phase)
		if snap.Err != "" {
			fmt.Printf(" (%s)", snap.Err)
		}
		fmt.Println()
	}

	records := st.All()
	store.SortBySeverity(records)
	fmt.Printf("--------------------------------------------------\nFindings: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Printf("[%s] %s (%s)\n", rec.Severity, rec.Title, rec.Tool)
		if rec.Location != nil && rec.Location.File != "" {
			fmt.Printf("  At: %s:%d\n", rec.Location.File, rec.Location.Line)
		}
		fmt.Printf("  %s\n", rec.Message)
		if rec.Enrichment != nil {
			fmt.Printf("  Why: %s\n", rec.Enrichment.Explanation)
			fmt.Printf("  Fix: %s\n", rec.Enrichment.Remediation)
		}
		fmt.Println()
	}
}

func init() {
	scanCmd.Flags().StringVarP(&scanSubject, "subject", "s", "", "Subject to scan (repository identifier)")
	scanCmd.Flags().StringVarP(&scanTools, "tool", "t", "all", "Comma-separated tools: scanner, compliance, pipeline")
	scanCmd.Flags().BoolVar(&scanNoEnrich, "no-enrich", false, "Skip AI enrichment of findings")
	scanCmd.Flags().BoolVar(&scanWait, "enrich-wait", true, "Wait for background enrichment before printing the report")
	scanCmd.Flags().StringVar(&snapshotOut, "snapshot", "", "Write findings to a snapshot file after the scan")
	rootCmd.AddCommand(scanCmd)
}
