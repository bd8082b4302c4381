package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"plant-gateway/internal/config"
	"plant-gateway/internal/logging"
	"plant-gateway/internal/vision"
)

// CLI define a linha de comando do plantdoc.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the HTTP server (default)."`
	Models  ModelsCmd  `cmd:"" help:"List the vision models available to GOOGLE_API_KEY."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	EnvFile string `name:"env-file" help:"Load environment variables from this file (default: ./.env if present)." type:"path"`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("plantdoc version %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// ModelsCmd lista os modelos, como /api/list-models, direto no terminal.
type ModelsCmd struct {
	JSON    bool          `help:"Print the raw JSON list."`
	Timeout time.Duration `help:"Timeout for the upstream call." default:"30s"`
}

func (c *ModelsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	analyzer, err := vision.NewGemini(ctx, geminiConfig(cfg))
	if err != nil {
		return err
	}
	models, err := analyzer.ListModels(ctx)
	if err != nil {
		logger.Error("list models failed", "error", err)
		return err
	}
	return printModels(os.Stdout, models, c.JSON)
}

func printModels(w io.Writer, models []vision.Model, asJSON bool) error {
	if asJSON {
		if models == nil {
			models = []vision.Model{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"models": models})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tINPUT\tOUTPUT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", m.Name, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
	}
	return tw.Flush()
}

func loadConfig(cli *CLI) (config.Config, error) {
	if err := config.LoadEnvFile(cli.EnvFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func geminiConfig(cfg config.Config) vision.GeminiConfig {
	return vision.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		TopK:            cfg.Gemini.TopK,
		TopP:            cfg.Gemini.TopP,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("plantdoc"),
		kong.Description("Plant disease analysis API guarded by a sliding-window quota."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
