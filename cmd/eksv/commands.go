package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opsverify/eks-validator/internal/config"
	"github.com/opsverify/eks-validator/internal/engine"
	"github.com/opsverify/eks-validator/internal/logging"
	"github.com/opsverify/eks-validator/internal/models"
	"github.com/opsverify/eks-validator/internal/report"
	"github.com/opsverify/eks-validator/internal/version"
)

// componentAliases maps the CLI component names to validation categories.
var componentAliases = map[string]string{
	"infra":      "infrastructure",
	"network":    "networking",
	"storage":    "storage",
	"addons":     "addons",
	"monitoring": "monitoring",
	"apps":       "applications",
}

// app carries the global flags and loaded settings shared by all commands.
type app struct {
	cfgPath  string
	envOnly  bool
	verbose  bool
	settings *config.Settings
	logger   zerolog.Logger
}

// bootstrap sets up logging and loads settings. Called from the root
// PersistentPreRunE so every subcommand sees a consistent state.
func (a *app) bootstrap() error {
	level := "INFO"
	if a.settings != nil {
		level = a.settings.Logging.Level
	}
	a.logger = logging.New(level, a.verbose)

	settings, err := a.loadSettings()
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = logging.New(settings.Logging.Level, a.verbose)

	if issues := settings.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			a.logger.Warn().Str("issue", issue).Msg("configuration issue")
		}
	}
	return nil
}

// loadSettings resolves configuration: environment variables only when
// requested or when no config file is available, the YAML file otherwise.
func (a *app) loadSettings() (*config.Settings, error) {
	if a.envOnly {
		return config.FromEnv(), nil
	}
	if a.cfgPath == "" {
		return config.FromEnv(), nil
	}
	if _, err := os.Stat(a.cfgPath); os.IsNotExist(err) {
		a.logger.Warn().Str("path", a.cfgPath).
			Msg("config file not found, falling back to environment variables")
		return config.FromEnv(), nil
	}
	settings, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", a.cfgPath, err)
	}
	return settings, nil
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	return a.logger.WithContext(cmd.Context())
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "eksv",
		Short:         "eksv — read-only validation for EKS clusters and their AWS surroundings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.bootstrap()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "config/environments.yaml", "Path to the environments config file")
	root.PersistentFlags().BoolVar(&a.envOnly, "env-only", false, "Ignore the config file and configure from environment variables")

	root.AddCommand(
		newValidateCmd(a),
		newQuickCheckCmd(a),
		newCheckComponentCmd(a),
		newListEnvironmentsCmd(a),
		newVersionCmd(),
	)
	return root
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "validate <environment>",
		Short: "Run the full validation suite against an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)

			validator, err := engine.New(ctx, a.settings, args[0])
			if err != nil {
				return err
			}

			results := validator.ValidateAll(ctx)
			now := time.Now()
			meta := report.NewMetadata(validator.Environment(), version.Version, now)

			if format == "" {
				format = a.settings.Report.Format
			}

			var content []byte
			switch format {
			case "json":
				content, err = report.ExportJSON(results, meta)
				if err != nil {
					return err
				}
			case "html":
				content = []byte(report.RenderHTML(results, meta))
			default:
				content = []byte(report.RenderMarkdown(results, meta))
			}

			path := output
			if path == "" {
				path = report.AutoReportPath(a.settings.Report.OutputDir, args[0], format, now)
			}
			if err := report.Save(path, content); err != nil {
				return err
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), report.RenderQuickSummary(results, meta))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this path instead of the reports directory")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Report format: markdown, json, or html (default from config)")
	return cmd
}

func newQuickCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quick-check <environment>",
		Short: "Fast cluster and node status check without a full report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)

			validator, err := engine.New(ctx, a.settings, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), validator.QuickClusterCheck(ctx))
			fmt.Fprintln(cmd.OutOrStdout(), validator.QuickNodeCheck(ctx))
			return nil
		},
	}
}

func newCheckComponentCmd(a *app) *cobra.Command {
	var component string

	cmd := &cobra.Command{
		Use:   "check-component <environment>",
		Short: "Run a single validation category and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, ok := componentAliases[component]
			if !ok {
				return fmt.Errorf("unknown component %q (choose from infra, network, storage, addons, monitoring, apps)", component)
			}

			ctx := a.ctx(cmd)
			validator, err := engine.New(ctx, a.settings, args[0])
			if err != nil {
				return err
			}

			node, err := validator.ValidateCategory(ctx, category)
			if err != nil {
				return err
			}
			return printJSON(cmd, models.Branch{category: node})
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "Component to check: infra, network, storage, addons, monitoring, or apps")
	_ = cmd.MarkFlagRequired("component")
	return cmd
}

func newListEnvironmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-environments",
		Short: "List the environments defined in the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := a.settings.EnvironmentNames()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No environments configured.")
				return nil
			}

			for _, name := range names {
				env, err := a.settings.Environment(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s  cluster=%-24s  region=%s\n",
					name, env.ClusterName, env.Region)
				if env.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s  %s\n", "", env.Description)
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// printJSON writes the node as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, node models.Node) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(node)
}
