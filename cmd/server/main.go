// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sozercan/decomp-relay/internal/analyzer"
	"github.com/sozercan/decomp-relay/internal/client"
	"github.com/sozercan/decomp-relay/internal/config"
	"github.com/sozercan/decomp-relay/internal/llm"
	"github.com/sozercan/decomp-relay/internal/logging"
	"github.com/sozercan/decomp-relay/internal/prompt"
	"github.com/sozercan/decomp-relay/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "decomp-relay",
		Short:         "Relay decompiled functions to an LLM for naming and signature recovery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP relay",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newAnalyzeCmd(),
		&cobra.Command{
			Use:   "schema",
			Short: "Print the response schema and system instructions sent upstream",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printSchema(cmd.OutOrStdout())
			},
		},
	)
	return rootCmd
}

func serve(ctx context.Context, configPath string) error {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.Setup(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	p, err := prompt.New()
	if err != nil {
		return err
	}

	llmProvider, err := llm.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	srv := server.New(*cfg, analyzer.New(llmProvider, p))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "addr", cfg.Server.Addr(), "provider", llmProvider.Name())
	return srv.Run(ctx)
}

func newAnalyzeCmd() *cobra.Command {
	var (
		serverURL string
		file      string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send a decompiled function to a running relay and print the rename plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			code, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			c, err := client.NewClient(serverURL, timeout)
			if err != nil {
				return err
			}
			res, err := c.Analyze(cmd.Context(), string(code))
			if err != nil {
				return err
			}
			plan, err := client.BuildPlan(res)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), plan)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:13337", "relay base URL")
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with decompiled code (default stdin)")
	cmd.Flags().DurationVar(&timeout, "timeout", 150*time.Second, "request timeout")
	return cmd
}

func printPlan(out io.Writer, plan *client.Plan) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FUNCTION\t0x%x\t%s\n", plan.Address, plan.FunctionName)
	for _, p := range plan.Parameters {
		fmt.Fprintf(w, "PARAM\t%d\t%s -> %s\n", p.Index, p.OriginalName, p.NewName)
	}
	for _, c := range plan.CalledFunctions {
		fmt.Fprintf(w, "CALLEE\t0x%x\t%s\n", c.Address, c.NewName)
	}
	for _, s := range plan.Skipped {
		fmt.Fprintf(w, "SKIPPED\t\t%s\n", s)
	}
	return w.Flush()
}

func printSchema(out io.Writer) error {
	p, err := prompt.New()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(p.Schema, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n\n%s\n", b, p.SystemInstructions)
	return nil
}
