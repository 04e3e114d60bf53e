// Package app builds the policyqa command line: the HTTP server, a one-shot
// ask command and the chunk index builder.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/policyqa-go/internal/config"
	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/policyqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/policyqa-go/internal/logging"
)

// NewCommand returns the root command.
func NewCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           config.Name,
		Short:         "Policy document viewer with a retrieval-backed assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to config file")

	root.AddCommand(
		newServeCommand(version),
		newAskCommand(version),
		newChunksCommand(),
	)
	return root
}

// Run executes the root command and exits non-zero on failure.
func Run(version string) {
	if err := NewCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config for cmd and builds its logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web viewer and the ask API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, version, logger)
		},
	}
	config.New().AddFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, version string, logger *zap.Logger) error {
	c, err := build(cfg, version, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.files != nil && cfg.Assets.Watch {
		watcher, err := filewatcher.NewFSNotifyWatcher([]string{".json"}, logger)
		if err != nil {
			return fmt.Errorf("creating asset watcher: %w", err)
		}
		defer watcher.Stop()

		go func() {
			if err := c.files.Follow(ctx, watcher); err != nil {
				logger.Warn("asset hot reload disabled", zap.Error(err))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	server, err := httpserver.NewServer(c.ask, c.docs, c.chunks, c.site, httpserver.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

func newAskCommand(version string) *cobra.Command {
	var (
		dryRun bool
		key    string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the command line",
		Long: "Ranks the policy excerpts for the question and asks the configured language model.\n" +
			"With --dry-run only the ranked excerpts and the assembled context are printed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			c, err := build(cfg, version, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if dryRun {
				scored, excerpts := c.ask.Preview(cmd.Context(), question)
				printPreview(out, scored, excerpts)
				return nil
			}

			resp, err := c.ask.Ask(cmd.Context(), &entities.AskRequest{Question: question, PrototypeKey: key})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, resp.Answer)
			fmt.Fprintf(out, "\nDaily usage: %d/%d (remaining: %d)\n", resp.Limit-resp.Remaining, resp.Limit, resp.Remaining)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the ranked excerpts without calling the language model")
	cmd.Flags().StringVar(&key, "key", "", "Assistant access key")
	config.New().AddFlags(cmd.Flags())
	return cmd
}

func printPreview(w io.Writer, scored []entities.ScoredChunk, excerpts string) {
	fmt.Fprintln(w, "Ranked excerpts:")
	if len(scored) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, s := range scored {
		fmt.Fprintf(w, "  %d. [%d] %s %s\n", i+1, s.Score, s.Chunk.Label, s.Chunk.Title)
	}
	fmt.Fprintln(w, "\nContext:")
	fmt.Fprintln(w, excerpts)
}

func newChunksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Manage the chunk index",
	}

	var policyPath, outPath string
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Derive chunks.json from policy.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(policyPath)
			if err != nil {
				return fmt.Errorf("reading policy: %w", err)
			}

			var doc entities.PolicyDocument
			if err := sonic.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decoding policy: %w", err)
			}

			set := entities.ChunkSet{Chunks: usecases.NewChunkUseCase().Build(&doc)}
			encoded, err := sonic.ConfigStd.MarshalIndent(set, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding chunks: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			}
			if err := os.WriteFile(outPath, encoded, 0644); err != nil {
				return fmt.Errorf("writing chunks: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d chunks to %s\n", len(set.Chunks), outPath)
			return nil
		},
	}
	buildCmd.Flags().StringVar(&policyPath, "policy", "assets/policy.json", "Policy document to read")
	buildCmd.Flags().StringVar(&outPath, "out", "-", "Output file, - for stdout")

	cmd.AddCommand(buildCmd)
	return cmd
}
