package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/standardbeagle/spanidx/internal/config"
	"github.com/standardbeagle/spanidx/internal/debug"
	"github.com/standardbeagle/spanidx/internal/indexing"
	"github.com/standardbeagle/spanidx/internal/version"

	"github.com/urfave/cli/v2"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		root = absRoot
	}

	cfg, err := config.LoadWithRoot(c.String("config"), root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if root != "" {
		cfg.Project.Root = root
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Store.Backend = backend
	}
	if db := c.String("db"); db != "" {
		cfg.Store.Path = db
	}
	if index := c.String("index"); index != "" {
		cfg.Store.Index = index
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads the config and opens a session over its store.
func openSession(c *cli.Context) (*indexing.Session, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return indexing.OpenSession(cfg)
}

func newApp() *cli.App {
	var cleanupFuncs []func()

	return &cli.App{
		Name:                   "spanidx",
		Usage:                  "Pack analyzer span output into compact stored files and query it",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); default looks for .spanidx.kdl then .spanidx.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Store backend: sqlite or memory",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index name rows are stored under",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only pack files matching glob patterns (e.g., --include 'src/**')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns (e.g., --exclude '**/obj/**')",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a temp log file",
			},
			&cli.StringFlag{
				Name:   "profile-cpu",
				Usage:  "Write CPU profile to file",
				Hidden: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "pack",
				Aliases:   []string{"p"},
				Usage:     "Validate analyzer JSON files and write them to the store",
				ArgsUsage: "<file.json|dir|-> ...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output the upload report as JSON"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only print failures"},
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep running and re-pack inputs as they change"},
				},
				Action: packCommand,
			},
			{
				Name:      "show",
				Usage:     "Show the spans of a stored file intersecting a range",
				ArgsUsage: "<project> <path>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "start", Usage: "Range start offset"},
					&cli.IntFlag{Name: "length", Usage: "Range length; -1 selects the whole file", Value: -1},
					&cli.BoolFlag{Name: "content", Usage: "Print the covered content"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: showCommand,
			},
			{
				Name:      "stats",
				Usage:     "Show segment statistics of a stored file",
				ArgsUsage: "<project> <path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: statsCommand,
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search definitions by name prefix, suggesting close names on a miss",
				ArgsUsage: "<prefix>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Restrict to one project"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results"},
					&cli.BoolFlag{Name: "hidden", Usage: "Include definitions excluded from default search"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: searchCommand,
			},
			{
				Name:      "refs",
				Usage:     "List reference groups of a symbol id across stored files",
				ArgsUsage: "<symbol-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Restrict to one project"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: refsCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration as TOML",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Validate the configuration",
						Action: configValidateCommand,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print version and build information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					fmt.Fprintf(c.App.Writer, "build id: %s\n", version.BuildID())
					return nil
				},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
				cleanupFuncs = append(cleanupFuncs, func() { _ = debug.CloseDebugLog() })
			}

			if cpuProfilePath := c.String("profile-cpu"); cpuProfilePath != "" {
				f, err := os.Create(cpuProfilePath)
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				cleanupFuncs = append(cleanupFuncs, func() {
					pprof.StopCPUProfile()
					f.Close()
				})
			}
			return nil
		},
		After: func(c *cli.Context) error {
			for i := len(cleanupFuncs) - 1; i >= 0; i-- {
				cleanupFuncs[i]()
			}
			cleanupFuncs = nil
			return nil
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
