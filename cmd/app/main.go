package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scribe/internal"
	"github.com/starford/scribe/internal/importer"
	pkgconfig "github.com/starford/scribe/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// loadOptionalConfig falls back to defaults when the config file is absent.
func loadOptionalConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func syncInbox(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reports, err := internal.RunInboxOnce(ctx, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("inbox sync error: %w", err)
	}
	return printJSON(os.Stdout, reports)
}

// parse prints the parse result of a file (or stdin for "-") without
// storing anything.
func parse(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadOptionalConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("parse: file argument is required")
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("parse: read input: %w", err)
	}

	mode := cfg.Import.Mode()
	if m := cmd.String("mode"); m != "" {
		if mode, err = importer.ParseMode(m); err != nil {
			return err
		}
	}

	pipeline, _ := internal.NewPipeline(cfg)
	res := pipeline.Parse(importer.Request{Payload: string(data), Mode: mode})
	if err := printJSON(os.Stdout, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("parse: nothing importable in %s", path)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "scribe",
		Usage:  "Import JSON and HTML payloads as normalized rich-text entries",
		Action: serve,
		Flags:  []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and inbox watcher",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: serveMCP,
			},
			{
				Name:   "inbox",
				Usage:  "Import the files currently waiting in the inbox and exit",
				Flags:  []cli.Flag{configFlag()},
				Action: syncInbox,
			},
			{
				Name:      "parse",
				Usage:     "Print what a payload file would import, without storing it",
				ArgsUsage: "<file|->",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Payload format: auto, json or markup",
					},
				},
				Action: parse,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
