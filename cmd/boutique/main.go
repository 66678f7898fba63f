// Package main is the Boutique CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperjump/boutique/internal/apiclient"
	"github.com/hyperjump/boutique/internal/cli"
	"github.com/hyperjump/boutique/internal/config"
	"github.com/hyperjump/boutique/internal/devbackend"
	"github.com/hyperjump/boutique/internal/ingest"
	"github.com/hyperjump/boutique/internal/models"
	"github.com/hyperjump/boutique/internal/present"
	"github.com/hyperjump/boutique/internal/session"
	"github.com/hyperjump/boutique/internal/watcher"
	"github.com/hyperjump/boutique/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/boutique/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When the default file does
// not exist either, built-in defaults plus the environment are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "search":
		os.Exit(runSearch(os.Args[2:]))
	case "image":
		os.Exit(runImage(os.Args[2:]))
	case "image-url":
		os.Exit(runImageURL(os.Args[2:]))
	case "health":
		os.Exit(runHealth(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "backend":
		os.Exit(runBackend(os.Args[2:]))
	case "version", "--version", "-v":
		fmt.Printf("boutique version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every command that talks to the backend.
type commonFlags struct {
	configPath *string
	apiURL     *string
	topK       *int
	output     *string
	debug      *bool
}

func addCommonFlags(fs *flag.FlagSet, args []string) *commonFlags {
	topK, output := searchDefaultsFromConfig(configPathFromArgs(args, defaultConfigPath))
	return &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		apiURL:     fs.String("api-url", "", "backend base URL (default from config, "+config.EnvAPIURL+", or "+config.DefaultAPIBaseURL+")"),
		topK:       fs.Int("top-k", topK, "number of results to request"),
		output:     fs.String("output", output, "output format: text (human-readable), compact (one product per line), or json (parseable)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// env is everything a command needs after flag parsing.
type env struct {
	cfg    *config.Config
	client *apiclient.Client
	logger *zap.Logger
	format cli.OutputFormat
	topK   int
}

func (f *commonFlags) resolve() (*env, error) {
	cfg, _, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug || *f.debug)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}
	baseURL := cfg.API.BaseURL
	if *f.apiURL != "" {
		baseURL = *f.apiURL
	}
	client := apiclient.NewClient(baseURL, apiclient.WithLogger(logger))
	return &env{cfg: cfg, client: client, logger: logger, format: format, topK: *f.topK}, nil
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return defaultPath
}

// searchDefaultsFromConfig loads config at path and returns its top-k and output format.
// On load failure, returns the built-in defaults.
func searchDefaultsFromConfig(path string) (topK int, output string) {
	topK, output = config.DefaultTopK, string(cli.OutputText)
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return topK, output
	}
	return cfg.Search.TopK, cfg.Search.Output
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting (e.g. "sac à main" vs sac à main).
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) ahead of the positional arguments so
// that fs.Parse sees them. Go's flag package stops at the first non-flag argument, so
// "boutique search sac -top-k 5" would otherwise leave -top-k unparsed.
// Positionals keep their relative order. fs tells value flags from bool flags; an
// argument after "--" is always positional.
func searchArgsReorder(fs *flag.FlagSet, args []string) []string {
	if len(args) == 0 {
		return args
	}
	flags := make([]string, 0, len(args))
	var positionals []string
	terminated := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positionals = append(positionals, args[i+1:]...)
			terminated = true
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positionals = append(positionals, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") || isBoolFlag(fs, name) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if terminated {
		flags = append(flags, "--")
	}
	return append(flags, positionals...)
}

func isBoolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	bf, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && bf.IsBoolFlag()
}

// searchOnce submits through submit, waits for the outcome and writes the final view
// to stdout. In text mode the loading message goes to stderr first.
// Returns the process exit status: 0 on success, 1 on failure, 2 if nothing was submitted.
func searchOnce(stdout, stderr io.Writer, c *session.Controller, surface models.SearchType, format cli.OutputFormat, submit func(*session.Controller) bool) int {
	if !submit(c) {
		return 2
	}
	if format == cli.OutputText {
		_ = cli.WriteView(stderr, present.Render(surface, c.State()), format)
	}
	c.Wait()
	st := c.State()
	if err := cli.WriteView(stdout, present.Render(surface, st), format); err != nil {
		fmt.Fprintf(stderr, "Output failed: %v\n", err)
		return 1
	}
	if st.Phase == session.Failed {
		return 1
	}
	return 0
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: boutique search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  boutique search sac à main
  boutique search "montre suisse" --top-k 5
  boutique search --output json parfum
`)
}

func runSearch(args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addCommonFlags(fs, args)
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(fs, args))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		return 2
	}
	e, err := flags.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.logger.Sync()

	c := session.NewController(models.SearchTypeKeyword, e.client,
		session.WithTopK(e.topK), session.WithLogger(e.logger))
	return searchOnce(os.Stdout, os.Stderr, c, models.SearchTypeKeyword, e.format, func(c *session.Controller) bool {
		_, ok := c.SubmitQuery(context.Background(), query)
		return ok
	})
}

func runImage(args []string) int {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	flags := addCommonFlags(fs, args)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: boutique image [flags] <file>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(fs, args))
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	e, err := flags.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.logger.Sync()

	f, err := ingest.OpenFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		return 1
	}
	c := session.NewController(models.SearchTypeImage, e.client,
		session.WithTopK(e.topK), session.WithLogger(e.logger))
	return searchImage(os.Stdout, os.Stderr, c, f, e.format, e.logger)
}

// searchImage selects f in a fresh pipeline and submits it straight away. The preview is
// built concurrently and only logged; the search never waits for it.
func searchImage(stdout, stderr io.Writer, c *session.Controller, f *ingest.File, format cli.OutputFormat, logger *zap.Logger, opts ...ingest.PipelineOption) int {
	pipelineOpts := []ingest.PipelineOption{
		ingest.WithLogger(logger),
		ingest.WithPreviewHandler(func(st ingest.UploadState) {
			logger.Debug("preview ready", zap.String("file", st.SelectedFile.Name), zap.Int("data_url_bytes", len(st.PreviewDataURL)))
		}),
	}
	pipeline := ingest.NewPipeline(append(pipelineOpts, opts...)...)
	if !pipeline.AcceptFile(f) {
		fmt.Fprintf(stderr, "Not an image: %s (%s)\n", f.Name, f.ContentType)
		return 2
	}
	return searchOnce(stdout, stderr, c, models.SearchTypeImage, format, func(c *session.Controller) bool {
		_, ok := c.SubmitImage(context.Background(), pipeline)
		return ok
	})
}

func runImageURL(args []string) int {
	fs := flag.NewFlagSet("image-url", flag.ExitOnError)
	flags := addCommonFlags(fs, args)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: boutique image-url [flags] <url>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(fs, args))
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	e, err := flags.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.logger.Sync()

	c := session.NewController(models.SearchTypeImage, e.client,
		session.WithTopK(e.topK), session.WithLogger(e.logger))
	return searchOnce(os.Stdout, os.Stderr, c, models.SearchTypeImage, e.format, func(c *session.Controller) bool {
		_, ok := c.SubmitImageURL(context.Background(), fs.Arg(0))
		return ok
	})
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	flags := addCommonFlags(fs, args)
	_ = fs.Parse(args)
	e, err := flags.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.logger.Sync()

	health, err := e.client.CheckHealth(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed (%s): %v\n", e.client.BaseURL(), err)
		return 1
	}
	if err := cli.WriteHealth(os.Stdout, health, e.format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

// runWatch turns every image dropped into the watched directories into an image search,
// printing each final view. A newer drop supersedes a search still in flight.
// SIGHUP reloads the config and reconciles the watched directories with it.
func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	flags := addCommonFlags(fs, args)
	syncExisting := fs.Bool("sync-existing", false, "also search with images already in the directories")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: boutique watch [flags] [dir...]\n\nDirs are watched in addition to watch.directories from the config.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(fs, args))
	e, err := flags.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.logger.Sync()

	extraDirs, err := absDirs(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	dirs, err := absDirs(append(append([]string(nil), e.cfg.Watch.Directories...), extraDirs...))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if len(dirs) == 0 {
		fs.Usage()
		return 2
	}

	c := session.NewController(models.SearchTypeImage, e.client,
		session.WithTopK(e.topK),
		session.WithLogger(e.logger),
		session.WithObserver(func(st session.State) {
			if st.Phase == session.Loading && e.format != cli.OutputText {
				return
			}
			_ = cli.WriteView(os.Stdout, present.Render(models.SearchTypeImage, st), e.format)
		}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := ingest.NewPipeline(ingest.WithLogger(e.logger))
	zone := ingest.NewDropZone(pipeline, func(f *ingest.File) {
		e.logger.Info("image dropped", zap.String("file", f.Name), zap.String("content_type", f.ContentType))
		c.SubmitFile(ctx, f)
	})
	watchOpts := []watcher.WatcherOption{watcher.WithLogger(e.logger)}
	w := watcher.NewWatcher(dirs[:1], e.cfg.Watch.Extensions, e.cfg.Watch.RecursiveOrDefault(), zone, watchOpts...)
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start watcher: %v\n", err)
		return 1
	}
	for _, d := range dirs[1:] {
		if err := w.AddDirectory(d, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch %s: %v\n", d, err)
			w.Stop()
			return 1
		}
	}
	if *syncExisting {
		w.SyncExistingFiles()
	}
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", strings.Join(w.Directories(), ", "))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}
		cfg, _, err := loadConfig(*flags.configPath)
		if err != nil {
			e.logger.Warn("config reload failed", zap.Error(err))
			continue
		}
		want := append(append([]string(nil), cfg.Watch.Directories...), extraDirs...)
		if err := reconcileDirectories(w, want, *syncExisting); err != nil {
			e.logger.Warn("watch directories reload failed", zap.Error(err))
			continue
		}
		e.logger.Info("watch directories reloaded", zap.Strings("directories", w.Directories()))
	}

	w.Stop()
	cancel()
	c.Wait()
	return 0
}

// reconcileDirectories makes w watch exactly dirs: roots not in dirs are removed and
// missing ones added. Added roots have their existing files dropped when syncExisting.
func reconcileDirectories(w *watcher.Watcher, dirs []string, syncExisting bool) error {
	dirs, err := absDirs(dirs)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		want[d] = true
	}
	for _, d := range w.Directories() {
		if want[filepath.Clean(d)] {
			continue
		}
		if err := w.RemoveDirectory(d); err != nil {
			return errors.Wrapf(err, "unwatch %s", d)
		}
	}
	for _, d := range dirs {
		if err := w.AddDirectory(d, syncExisting); err != nil {
			return errors.Wrapf(err, "watch %s", d)
		}
	}
	return nil
}

// absDirs returns dirs as clean absolute paths, dropping duplicates.
func absDirs(dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid directory %s", d)
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	return out, nil
}

func runBackend(args []string) int {
	fs := flag.NewFlagSet("backend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	catalogPath := fs.String("catalog", "", "catalog YAML (default from config, or the built-in sample)")
	addr := fs.String("addr", "", "listen address host:port (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging (one line per request)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return 1
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	logger.Debug("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	if *catalogPath != "" {
		cfg.Backend.CatalogPath = *catalogPath
	}
	if *addr != "" {
		host, port, err := splitAddr(*addr)
		if err != nil {
			fmt.Println(err)
			return 2
		}
		cfg.Backend.Host, cfg.Backend.Port = host, port
	}

	var catalog *devbackend.Catalog
	if cfg.Backend.CatalogPath != "" {
		catalog, err = devbackend.LoadCatalog(cfg.Backend.CatalogPath)
		if err != nil {
			fmt.Printf("Failed to load catalog: %v\n", err)
			return 1
		}
	}
	srv, err := devbackend.NewServer(catalog, &cfg.Backend, logger)
	if err != nil {
		fmt.Printf("Failed to start backend: %v\n", err)
		return 1
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Printf("Dev backend listening on http://%s/api/v1\n", cfg.Backend.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		_ = srv.Close()
		return 1
	}

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	return 0
}

// splitAddr parses host:port. An empty host means all interfaces.
func splitAddr(addr string) (string, int, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return "", 0, errors.Newf("invalid address %q: want host:port", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, errors.Newf("invalid port in %q", addr)
	}
	return addr[:i], port, nil
}

func printUsage() {
	fmt.Println(`boutique - Luxury product search from the terminal

Usage:
  boutique search [flags] <query>    Search products by keyword
  boutique image [flags] <file>      Search products similar to an image file
  boutique image-url [flags] <url>   Search products similar to an image URL
  boutique watch [flags] [dir...]    Search every image dropped into a directory
  boutique health [flags]            Show backend status
  boutique backend [flags]           Run the local dev backend
  boutique version                   Show version
  boutique help                      Show this help

Search Flags (search, image, image-url, watch, health):
  --config string    Config file path (default: /usr/local/etc/boutique/config.yaml)
  --api-url string   Backend base URL (default from config, BOUTIQUE_API_URL, or http://localhost:8000)
  --top-k int        Number of results to request (default from config, or 12)
  --output string    Output format: text, compact, or json (default: text)
  --debug            Enable debug logging

Backend Flags:
  --config string    Config file path
  --catalog string   Catalog YAML (default: built-in sample catalog)
  --addr string      Listen address (default: localhost:8000)
  --debug            Log every request

Exit status is 1 when the search fails and 2 on usage errors.

Examples:
  boutique backend &
  boutique search sac à main
  boutique search --output json "montre suisse"
  boutique image ./photos/bag.jpg
  boutique image-url https://example.com/bag.jpg
  boutique watch --sync-existing ~/Pictures/drop`)
}
