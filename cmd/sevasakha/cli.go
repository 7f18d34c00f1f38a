package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/StackOverflowed512/AI-Secretary/common/version"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/app"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/config"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/observability"
)

// cliActor names CLI calls in the audit log.
const cliActor = "cli"

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	dbPath     string
	backend    string
	embedder   string
	httpAddr   string
	logLevel   string
	logFormat  string
}

func globalFlags(g *globals) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML configuration file",
			Sources:     cli.EnvVars(config.EnvConfigFile),
			Destination: &g.configPath,
			TakesFile:   true,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "SQLite database path (overrides DATABASE_PATH)",
			Destination: &g.dbPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "vector backend: chromem or sqlite (overrides VECTOR_BACKEND)",
			Destination: &g.backend,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "embedder: openai or hash (overrides EMBEDDER)",
			Destination: &g.embedder,
		},
		&cli.StringFlag{
			Name:        "http-addr",
			Usage:       "HTTP API listen address (overrides HTTP_ADDR)",
			Destination: &g.httpAddr,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error (overrides LOG_LEVEL)",
			Destination: &g.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "text or json (overrides LOG_FORMAT)",
			Destination: &g.logFormat,
		},
	}
}

// loadConfig layers defaults, the config file, the environment and any flags
// given on the command line.
func (g *globals) loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		if err := cfg.LoadFile(g.configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	overrides := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"db", &cfg.DatabasePath, g.dbPath},
		{"backend", &cfg.Memory.Backend, g.backend},
		{"embedder", &cfg.Memory.Embedder, g.embedder},
		{"http-addr", &cfg.HTTPAddr, g.httpAddr},
		{"log-level", &cfg.Log.Level, g.logLevel},
		{"log-format", &cfg.Log.Format, g.logFormat},
	}
	for _, o := range overrides {
		if cmd.IsSet(o.flag) {
			*o.dst = o.val
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the configuration, installs the logger and builds the app.
func (g *globals) open(cmd *cli.Command) (*app.App, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := observability.Setup(cfg.Log.Level, cfg.Log.Format)
	return app.New(cfg, logger, appOptions...)
}

// appOptions is empty in production; tests install a fake chat provider.
var appOptions []app.Option

func newRootCommand() *cli.Command {
	g := &globals{}
	return &cli.Command{
		Name:    "sevasakha",
		Usage:   "Personal secretary memory: index what you know, ask about it later",
		Version: version.Version,
		Flags:   globalFlags(g),
		Commands: []*cli.Command{
			serveCommand(g),
			indexCommand(g),
			rememberCommand(g),
			askCommand(g),
			translateCommand(g),
			summariseCommand(g),
			historyCommand(g),
			versionCommand(),
		},
	}
}

func serveCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and, when configured, the Matrix gateway",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := g.open(c)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(c.Root().Writer, version.Info())
			return a.Run(ctx)
		},
	}
}

func indexCommand(g *globals) *cli.Command {
	var (
		sourceType string
		title      string
		file       string
		meta       []string
	)
	return &cli.Command{
		Name:      "index",
		Usage:     "Store text in memory",
		ArgsUsage: "[text | -]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "source type (email, document, meeting, ...)",
				Destination: &sourceType,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "record title (defaults to the file name)",
				Destination: &title,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read the text from a file",
				Destination: &file,
				TakesFile:   true,
			},
			&cli.StringSliceFlag{
				Name:        "meta",
				Usage:       "extra metadata as key=value (repeatable)",
				Destination: &meta,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text, err := readText(c, file)
			if err != nil {
				return err
			}
			if title == "" && file != "" {
				title = filepath.Base(file)
			}
			extra, err := parseMeta(meta)
			if err != nil {
				return err
			}
			return withApp(g, c, func(a *app.App) error {
				res := a.Assistant().Index(ctx, cliActor, memory.Record{
					SourceType: sourceType,
					Title:      title,
					Body:       text,
					Extra:      extra,
				})
				return report(c, res)
			})
		},
	}
}

func askCommand(g *globals) *cli.Command {
	var scope string
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question from memory",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "scope",
				Aliases:     []string{"s"},
				Usage:       "restrict to one source type, or all",
				Value:       memory.ScopeAll,
				Destination: &scope,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.Join(c.Args().Slice(), " ")
			return withApp(g, c, func(a *app.App) error {
				res := a.Assistant().Ask(ctx, cliActor, question, scope)
				if err := report(c, res); err != nil {
					return err
				}
				for _, m := range res.Matches {
					fmt.Fprintf(c.Root().Writer, "  - [%s] %s (distance %.3f)\n", m.SourceType(), m.Title(), m.Distance)
				}
				return nil
			})
		},
	}
}

func translateCommand(g *globals) *cli.Command {
	var (
		lang  string
		index bool
	)
	return &cli.Command{
		Name:      "translate",
		Usage:     "Translate text",
		ArgsUsage: "<text | ->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "lang",
				Aliases:     []string{"l"},
				Usage:       "target language code (es, fr, de, zh, ja, pt, ru, it, nl, ko)",
				Destination: &lang,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "index",
				Usage:       "also store the translation in memory",
				Destination: &index,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text, err := readText(c, "")
			if err != nil {
				return err
			}
			return withApp(g, c, func(a *app.App) error {
				tr := a.Assistant().Translate(ctx, cliActor, text, lang, index)
				fmt.Fprintln(c.Root().Writer, tr.Message)
				if tr.Indexed != nil {
					fmt.Fprintln(c.Root().Writer, tr.Indexed.String())
				}
				return tr.Err
			})
		},
	}
}

func summariseCommand(g *globals) *cli.Command {
	var (
		file  string
		title string
		index bool
	)
	return &cli.Command{
		Name:    "summarise",
		Aliases: []string{"summarize"},
		Usage:   "Executive summary of a document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "document to summarise",
				Destination: &file,
				TakesFile:   true,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "title when indexing (defaults to the file name)",
				Destination: &title,
			},
			&cli.BoolFlag{
				Name:        "index",
				Usage:       "store the document in memory first",
				Destination: &index,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text, err := readText(c, file)
			if err != nil {
				return err
			}
			if title == "" {
				title = filepath.Base(file)
				if file == "" {
					title = "document"
				}
			}
			return withApp(g, c, func(a *app.App) error {
				s := a.Assistant().Summarise(ctx, cliActor, title, text, index)
				if s.Indexed != nil {
					fmt.Fprintln(c.Root().Writer, s.Indexed.String())
				}
				fmt.Fprintln(c.Root().Writer, s.Message)
				return s.Err
			})
		},
	}
}

func historyCommand(g *globals) *cli.Command {
	var limit int64
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent index and ask operations",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "number of entries",
				Value:       20,
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			return withApp(g, c, func(a *app.App) error {
				entries, err := a.Assistant().History(ctx, int(limit))
				if err != nil {
					return err
				}
				w := c.Root().Writer
				for _, e := range entries {
					line := fmt.Sprintf("%s  %-14s %-8s %-20s %s",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Result, e.Target.String, e.Actor)
					if e.ErrorMessage.Valid {
						line += "  error: " + e.ErrorMessage.String
					}
					fmt.Fprintln(w, line)
				}
				return nil
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(_ context.Context, c *cli.Command) error {
			fmt.Fprintln(c.Root().Writer, version.Info())
			return nil
		},
	}
}

func withApp(g *globals, c *cli.Command, fn func(*app.App) error) error {
	a, err := g.open(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// errOperationFailed makes a failed result exit non-zero once its message
// has been printed.
var errOperationFailed = errors.New("operation failed")

// report prints a memory result and turns a failure into an error.
func report(c *cli.Command, res memory.Result) error {
	fmt.Fprintln(c.Root().Writer, res.String())
	if res.Kind == memory.KindFailed {
		return errOperationFailed
	}
	return nil
}

// readText returns the file contents, stdin for "-", or the joined args.
func readText(c *cli.Command, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(b), nil
	}
	if c.Args().Len() == 1 && c.Args().First() == "-" {
		b, err := io.ReadAll(c.Root().Reader)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
