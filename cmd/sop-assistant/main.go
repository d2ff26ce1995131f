// Package main is the SOP assistant CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/answer"
	"github.com/gunter0128/sop-assistant/internal/cli"
	"github.com/gunter0128/sop-assistant/internal/config"
	"github.com/gunter0128/sop-assistant/internal/embedding"
	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/internal/resolver"
	"github.com/gunter0128/sop-assistant/internal/retriever"
	"github.com/gunter0128/sop-assistant/internal/segmenter"
	"github.com/gunter0128/sop-assistant/internal/server"
	"github.com/gunter0128/sop-assistant/internal/watcher"
	"github.com/gunter0128/sop-assistant/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/sop-assistant/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so running from the project dir picks up the project's config.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "build":
		runBuild()
	case "ask":
		runAsk()
	case "serve":
		runServe()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("sop-assistant version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: sop-assistant <command> [flags]

Commands:
  build     Build the index from the SOP corpus directory
  ask       Answer a question against the built index
  serve     Run the HTTP API server
  status    Show index statistics
  version   Print the version

Run "sop-assistant <command> -h" for command flags.
`)
}

// components bundles everything the pipeline needs. Close releases the
// embedder's resources.
type components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Embedder  embedding.Embedder
	Builder   *index.Builder
	Store     *index.Store
	Assistant *answer.Assistant
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// initComponents wires the pipeline from config. withSynthesis controls
// whether the chat-completion client is created; the build command does not
// need it.
func initComponents(cfg *config.Config, logger *zap.Logger, withSynthesis bool) (*components, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")

	emb, err := embedding.NewOpenAIEmbedder(apiKey, embedding.OpenAIOptions{
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		Timeout:       time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		MaxAttempts:   cfg.Embedding.MaxAttempts,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		CacheSize:     cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	seg := segmenter.New(cfg.Segmenter.SegmentSize, cfg.Segmenter.SegmentOverlap)
	builder := index.NewBuilder(
		cfg.Corpus.Dir,
		cfg.Corpus.Extensions,
		cfg.Index.VectorPath,
		cfg.Index.MetadataPath,
		seg,
		emb,
		logger,
	)
	store := index.NewStore()

	var assistant *answer.Assistant
	if withSynthesis {
		synth, err := answer.NewOpenAISynthesizer(apiKey, answer.SynthesizerOptions{
			Model:       cfg.Answer.Model,
			Timeout:     time.Duration(cfg.Answer.TimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Answer.MaxAttempts,
		})
		if err != nil {
			_ = emb.Close()
			return nil, err
		}
		ret := retriever.New(store, emb, logger)
		res := resolver.New(logger)
		assistant = answer.NewAssistant(ret, res, synth, cfg.Answer.DefaultTopK, cfg.Answer.MaxTopK, logger)
	}

	return &components{
		Config:    cfg,
		Logger:    logger,
		Embedder:  emb,
		Builder:   builder,
		Store:     store,
		Assistant: assistant,
	}, nil
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, string) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolvedPath
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedPath := setup(*configPath, *debug)
	logger.Info("config loaded", zap.String("config_path", resolvedPath))

	comps, err := initComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	start := time.Now()
	snap, err := comps.Builder.Build(context.Background())
	if err != nil {
		logger.Fatal("Build failed", zap.Error(err))
	}
	stats := snap.Stats()
	fmt.Printf("Indexed %d segment(s) from %d document version(s) in %s\n",
		stats.Segments, stats.Versions, time.Since(start).Round(time.Millisecond))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server instead of loading the index locally")
	topK := fs.Int("top-k", 0, "retrieval window size (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	if *serverURL != "" {
		if query == "" {
			fmt.Fprintln(os.Stderr, "Usage: sop-assistant ask -server <url> <question>")
			os.Exit(1)
		}
		ans, err := askViaHTTP(*serverURL, query, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, logger, _ := setup(*configPath, *debug)
	comps, err := initComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	ctx := context.Background()
	snap, err := index.LoadSnapshot(ctx, cfg.Index.VectorPath, cfg.Index.MetadataPath, "local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load index (run \"sop-assistant build\" first): %v\n", err)
		os.Exit(1)
	}
	comps.Store.Swap(snap)

	askOnce := func(q string) {
		ans, err := comps.Assistant.Ask(ctx, &models.AskRequest{Query: q, TopK: *topK})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			return
		}
		if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
	}

	if query != "" {
		askOnce(query)
		return
	}

	// No positional args: interactive loop.
	fmt.Println("SOP assistant. Type a question, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		askOnce(line)
	}
}

func askViaHTTP(serverURL, query string, topK int) (*models.Answer, error) {
	body, err := json.Marshal(models.AskRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var ans models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ans, nil
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	buildOnStart := fs.Bool("build", false, "rebuild the index before serving")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedPath := setup(*configPath, *debug)
	logger.Info("config loaded", zap.String("config_path", resolvedPath), zap.Bool("debug", cfg.Debug || *debug))

	comps, err := initComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	ctx := context.Background()
	if *buildOnStart {
		snap, err := comps.Builder.Build(ctx)
		if err != nil {
			logger.Fatal("Initial build failed", zap.Error(err))
		}
		comps.Store.Swap(snap)
	} else {
		snap, err := index.LoadSnapshot(ctx, cfg.Index.VectorPath, cfg.Index.MetadataPath, "startup")
		if err != nil {
			logger.Warn("no index loaded; use POST /api/v1/rebuild or restart with -build", zap.Error(err))
		} else {
			comps.Store.Swap(snap)
		}
	}

	rebuild := func(ctx context.Context) (*index.Snapshot, error) {
		return comps.Builder.Build(ctx)
	}

	var watchCancel context.CancelFunc
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(cfg.Corpus.Dir, cfg.Corpus.Extensions, func() {
			snap, err := comps.Builder.Build(context.Background())
			if err != nil {
				logger.Warn("watch rebuild failed; keeping previous index", zap.Error(err))
				return
			}
			comps.Store.Swap(snap)
			logger.Info("index rebuilt after corpus change",
				zap.String("build_id", snap.BuildID()),
				zap.Int("segments", snap.Size()),
			)
		}, watchOpts...)
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(comps.Assistant, comps.Store, rebuild, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of reading the index locally")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats index.Stats
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		snap, err := index.LoadSnapshot(context.Background(), cfg.Index.VectorPath, cfg.Index.MetadataPath, "local")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load index: %v\n", err)
			os.Exit(1)
		}
		stats = snap.Stats()
	}

	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}
