package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blockext/internal/annotation"
	"blockext/internal/builder"
	"blockext/internal/config"
	"blockext/internal/models"
	"blockext/internal/parser"
	"blockext/internal/pipeline"
	"blockext/internal/server"
	"blockext/internal/utils"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("compilation failed")

var rootCmd = &cobra.Command{
	Use:   "blockext",
	Short: "Compile annotated JavaScript into Scratch extensions",
	Long: "blockext turns JavaScript functions marked with annotation comments such as\n" +
		"//@reporter(add five [val:NUMBER]) into a Scratch extension class.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load shared config (~/.blockext/config.json) so BLOCKEXT_* values
		// from that file are visible as env vars.
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(verbose)})
		slog.SetDefault(slog.New(handler))
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Compile one annotated source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = utils.OutputPath(path)
		}

		code, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		compiler, err := compilerFor(path)
		if err != nil {
			return err
		}

		res, err := compiler.Compile(cmd.Context(), code)
		if err != nil {
			return reportCompileError(path, code, err)
		}
		if res.Lint != nil {
			for _, f := range res.Lint.Findings {
				fmt.Fprint(os.Stderr, pipeline.Render(path, code, pipeline.FromFinding(f)))
			}
		}

		if out == "-" {
			fmt.Print(res.Output)
			return nil
		}
		if err := os.WriteFile(out, []byte(res.Output), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("✓ Built %s (%d blocks, %d menus)\n", out, len(res.Extension.Blocks), len(res.Extension.Menus))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Report annotation errors and lint findings without writing output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		code, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		compiler, err := compilerFor(path)
		if err != nil {
			return err
		}

		diags, err := compiler.Check(cmd.Context(), code)
		if err != nil {
			return err
		}
		for _, d := range diags {
			fmt.Fprint(os.Stderr, pipeline.Render(path, code, d))
		}
		if pipeline.HasErrors(diags) {
			return errReported
		}
		if len(diags) == 0 {
			fmt.Println("✓ No problems found")
		}
		return nil
	},
}

var annotationCmd = &cobra.Command{
	Use:   "annotation <text>",
	Short: "Parse a single annotation and print its structure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[0]
		node, err := annotation.Parse(text)
		if err != nil {
			var perr *annotation.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintln(os.Stderr, annotation.RenderError(text, perr))
				return errReported
			}
			return err
		}

		data, _ := json.MarshalIndent(annotation.ToNode(node), "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

var buildAllCmd = &cobra.Command{
	Use:   "build-all",
	Short: "Compile every annotated source under a directory, skipping unchanged files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		force, _ := cmd.Flags().GetBool("force")
		workers, _ := cmd.Flags().GetInt("workers")

		compiler, err := newCompiler()
		if err != nil {
			return err
		}

		b := builder.New(compiler)
		b.Force = force
		b.NumWorkers = workers
		if workers <= 0 {
			b.NumWorkers = config.Workers()
		}

		fmt.Printf("Building project at: %s\n", dir)
		report, err := b.BuildProject(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Printf("→ %d built, %d unchanged, %d failed\n", len(report.Built), len(report.Skipped), len(report.Failed))
		if len(report.Failed) > 0 {
			return errReported
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve compile and check tools as JSON-RPC over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		compiler, err := newCompiler()
		if err != nil {
			return err
		}
		err = server.NewServer(compiler, Version).Run(cmd.Context(), os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Forget recorded file hashes so the next build-all rebuilds everything",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		root, err := utils.NormalizeProjectRoot(dir)
		if err != nil {
			return fmt.Errorf("failed to normalize project root: %w", err)
		}
		projectID, err := utils.ComputeProjectID(root)
		if err != nil {
			return fmt.Errorf("failed to compute project id: %w", err)
		}

		if err := builder.ClearProjectState(projectID); err != nil {
			return err
		}
		fmt.Println("✓ Build cache cleared")
		return nil
	},
}

func newCompiler() (*pipeline.Compiler, error) {
	return pipeline.New(config.Options())
}

// compilerFor picks the host parser by file extension.
func compilerFor(path string) (*pipeline.Compiler, error) {
	source, err := parser.NewParserFactory().GetParserByFilePath(path)
	if err != nil {
		return nil, err
	}
	return pipeline.NewWithParser(source, config.Options())
}

func reportCompileError(path string, code []byte, err error) error {
	var located *models.Error
	if errors.As(err, &located) {
		fmt.Fprint(os.Stderr, pipeline.Render(path, code, pipeline.FromError(located)))
		return errReported
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	buildCmd.Flags().StringP("output", "o", "", "Output file (default <name>.ext.js next to the source, - for stdout)")
	buildAllCmd.Flags().String("dir", ".", "Project root directory")
	buildAllCmd.Flags().Bool("force", false, "Rebuild files even if they have not changed")
	buildAllCmd.Flags().Int("workers", 0, "Number of parallel workers (default BLOCKEXT_WORKERS or CPU count)")
	clearCacheCmd.Flags().String("dir", ".", "Project root directory whose build cache should be cleared")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(annotationCmd)
	rootCmd.AddCommand(buildAllCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clearCacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// IsReported reports whether err was already printed in full.
func IsReported(err error) bool {
	return errors.Is(err, errReported)
}
