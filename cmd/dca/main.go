package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/glizzus/dca/internal/config"
	"github.com/glizzus/dca/internal/metadata"
	"github.com/urfave/cli/v2"
)

func newApp(defaults *config.EncodeConfig) *cli.App {
	// -v belongs to --vol, so the built in version flag is replaced.
	flags := append(encodeFlags(defaults), &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	})

	return &cli.App{
		Name:        metadata.ToolName,
		Version:     metadata.ToolVersion,
		HideVersion: true,
		Usage:       "encode audio into a DCA container of Opus packets",
		UsageText:   "dca [options] [input file] [options]\ndca inspect [--key key] <file|->\ndca catalog list [--limit n]",
		Writer:      os.Stdout,
		ErrWriter:   os.Stderr,
		Flags:       flags,
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			return nil
		},
		Action: encodeAction(defaults),
		Commands: []*cli.Command{
			inspectCommand(),
			catalogCommand(),
		},
		HideHelpCommand: true,
	}
}

func run() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	defaults, err := config.NewEncodeConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load encode config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// Restore the default handler so a second interrupt kills the process.
	context.AfterFunc(ctx, stop)

	app := newApp(defaults)
	return app.RunContext(ctx, inputLast(app, os.Args))
}

// inputLast moves a leading input file behind the options that follow it,
// so `dca song.mp3 --raw` parses like `dca --raw song.mp3`. Flag parsing
// otherwise stops at the first positional argument. Subcommands and
// anything after "--" are left alone.
func inputLast(app *cli.App, args []string) []string {
	boolFlags := map[string]bool{"help": true, "h": true}
	for _, f := range app.Flags {
		if b, ok := f.(*cli.BoolFlag); ok {
			for _, name := range b.Names() {
				boolFlags[name] = true
			}
		}
	}

	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args
		}
		if len(arg) > 1 && strings.HasPrefix(arg, "-") {
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && !boolFlags[name] {
				// The next argument is this flag's value.
				i++
			}
			continue
		}
		if arg == "help" || app.Command(arg) != nil || i == len(args)-1 {
			return args
		}

		reordered := make([]string, 0, len(args))
		reordered = append(reordered, args[:i]...)
		reordered = append(reordered, args[i+1:]...)
		return append(reordered, arg)
	}
	return args
}

func main() {
	if err := run(); err != nil {
		slog.Error("dca failed", "error", err)
		os.Exit(1)
	}
}
