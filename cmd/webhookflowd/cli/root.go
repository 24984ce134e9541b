// Package cli assembles the webhookflowd command tree: a spf13/cobra root
// command with a persistent config-loading hook, mirroring the teacher's
// cli.RootCmd/SetupGlobalConfig pattern but scoped to webhookflow's own
// configuration surface instead of the teacher's registry-driven one.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/compozy/webhookflow/pkg/config"
	"github.com/compozy/webhookflow/pkg/logger"
)

// RootCmd builds the webhookflowd command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webhookflowd",
		Short: "webhookflowd is a webhook-driven workflow automation engine",
		Long: `webhookflowd ingests webhook deliveries, deduplicates and queues them,
and runs the matching workflow definition's DAG of actions to completion.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupGlobalConfig(cmd)
		},
		SilenceUsage: true,
	}
	addGlobalFlags(root)
	root.AddCommand(newServeCommand(), newValidateCommand())
	return root
}

// addGlobalFlags registers the flags every subcommand's config load can see.
func addGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("mode", "", "Deployment mode: standalone or distributed")
	flags.String("host", "", "Server bind host")
	flags.Int("port", 0, "Server bind port")
	flags.String("log-level", "", "Log level: debug, info, warn, or error")
	flags.String("webhook-secret", "", "Webhook signature verification secret")
	flags.Int("queue-capacity", 0, "Bounded queue capacity")
	flags.Int("queue-max-retries", 0, "Default max retries for a queued event")
	flags.Int("dedup-capacity", 0, "Deduplication cache capacity")
	flags.Int("history-cache-capacity", 0, "In-memory execution history cache capacity")
	flags.Int("history-retention-days", 0, "Execution history retention, in days")
}

// setupGlobalConfig loads configuration from defaults, an optional YAML
// file, CLI flags, and the environment (env always wins), then attaches
// the resolved Config and a Logger built from it to the command's context.
func setupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliFlags, err := extractCLIFlags(cmd)
	if err != nil {
		return fmt.Errorf("failed to extract CLI flags: %w", err)
	}
	mgr := config.NewManager(nil)
	sources := buildConfigSources(cmd, cliFlags)
	cfg, err := mgr.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx = contextWithManager(ctx, mgr)
	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.Runtime.LogLevel),
		Output: os.Stdout,
		JSON:   cfg.Runtime.Environment == "production",
	})
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	return nil
}

func buildConfigSources(cmd *cobra.Command, cliFlags map[string]any) []config.Source {
	sources := []config.Source{config.NewDefaultProvider()}
	if configFile := flagString(cmd, "config"); configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	} else if _, err := os.Stat("webhookflow.yaml"); err == nil {
		sources = append(sources, config.NewYAMLProvider("webhookflow.yaml"))
	}
	if _, err := os.Stat(".env"); err == nil {
		sources = append(sources, config.NewDotenvProvider(".env"))
	}
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}
	return sources
}

// lookupFlag finds name in cmd's local flags first, then its persistent
// flags: cobra only merges the two sets during a real Execute() run, so a
// PersistentPreRunE invoked directly (as in tests) must check both.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.PersistentFlags().Lookup(name)
}

func flagString(cmd *cobra.Command, name string) string {
	f := lookupFlag(cmd, name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// extractCLIFlags reads every flag this package registers that was
// actually set on the command line, keyed by the flag name cliProvider
// expects (see pkg/config's cliFlagKeys).
func extractCLIFlags(cmd *cobra.Command) (map[string]any, error) {
	out := map[string]any{}
	stringFlags := []string{"mode", "host", "log-level", "webhook-secret"}
	for _, name := range stringFlags {
		f := lookupFlag(cmd, name)
		if f == nil || !f.Changed {
			continue
		}
		out[name] = f.Value.String()
	}
	intFlags := []string{
		"port", "queue-capacity", "queue-max-retries",
		"dedup-capacity", "history-cache-capacity", "history-retention-days",
	}
	for _, name := range intFlags {
		f := lookupFlag(cmd, name)
		if f == nil || !f.Changed {
			continue
		}
		v, err := strconv.Atoi(f.Value.String())
		if err != nil {
			return nil, fmt.Errorf("invalid value for --%s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// resolveMode applies the top-level --mode flag to cfg, respecting
// precedence: a config file value for mode outranks the CLI flag, matching
// the rule that whoever assembled the deployment's config file gets the
// final say over a flag a developer happened to pass locally.
func resolveMode(cmd *cobra.Command, svc config.Service, current string) string {
	f := lookupFlag(cmd, "mode")
	if f == nil || !f.Changed {
		return current
	}
	mode := strings.TrimSpace(f.Value.String())
	if mode == "" {
		return current
	}
	src := svc.GetSource("mode")
	if src == config.SourceDefault || src == config.SourceEnv || src == config.SourceCLI {
		return mode
	}
	return current
}
