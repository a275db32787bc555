// Package main is the ragbase CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/classify"
	"github.com/hyperjump/ragbase/internal/cli"
	"github.com/hyperjump/ragbase/internal/config"
	"github.com/hyperjump/ragbase/internal/embedding"
	"github.com/hyperjump/ragbase/internal/extract"
	"github.com/hyperjump/ragbase/internal/indexer"
	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/search"
	"github.com/hyperjump/ragbase/internal/segment"
	"github.com/hyperjump/ragbase/internal/server"
	"github.com/hyperjump/ragbase/internal/storage"
	"github.com/hyperjump/ragbase/internal/watcher"
	"github.com/hyperjump/ragbase/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ragbase/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "list":
		runList()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ragbase version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := components.Answerer.Ping(pingCtx); err != nil {
		logger.Warn("answer model not reachable; questions will fail until it is",
			zap.String("url", cfg.Ollama.BaseURL), zap.Error(err))
	}
	pingCancel()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		exts := cfg.Watch.Extensions
		idx := components.Indexer
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			exts,
			func(ctx context.Context, path string) error {
				_, err := idx.IngestFile(ctx, path, exts)
				return err
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles(watchCtx)
	}

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		&cfg.Server,
		logger,
		server.WithInfo(server.Info{
			Version:          version,
			ChatModel:        cfg.OpenAI.ChatModel,
			EmbeddingModel:   cfg.OpenAI.EmbeddingModel,
			AnswerModel:      cfg.Ollama.Model,
			DatabasePath:     cfg.Storage.DatabasePath,
			StrictTaxonomy:   cfg.Classifier.StrictOrDefault(),
			DefaultTopK:      cfg.Retrieval.DefaultTopK,
			WatchDirectories: cfg.Watch.Directories,
		}),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// serverURLFromConfig derives the server URL from the config at path, falling
// back to defaultServerURL when it cannot be loaded.
func serverURLFromConfig(path string) string {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return defaultServerURL
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

// clientFlags registers the flags shared by every command that talks to the server.
func clientFlags(fs *flag.FlagSet, args []string) (serverURL, output *string) {
	_ = fs.String("config", defaultConfigPath, "config file path (used to locate the server)")
	serverURL = fs.String("server", serverURLFromConfig(configPathFromArgs(args, defaultConfigPath)), "server URL")
	output = fs.String("output", "text", "output format: text or json")
	return serverURL, output
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func exitOnError(action string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", action, err)
		os.Exit(1)
	}
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ragbase ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ragbase ask quem assinou o documento?
  ragbase ask --top-k 5 "o que o plano odontológico cobre?"
  ragbase ask --description plano "qual a carência?"   # only chunks whose category contains "plano"
`)
}

func runAsk() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL, output := clientFlags(fs, args)
	topK := fs.Int("top-k", 0, fmt.Sprintf("number of context chunks, 1-%d (default from server config)", models.MaxTopK))
	description := fs.String("description", "", "only use chunks whose category contains this text")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(args)

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format := mustFormat(*output)

	answer, err := cli.NewClient(*serverURL, 0).Ask(context.Background(), &models.AskRequest{
		Question:    question,
		TopK:        *topK,
		Description: *description,
	})
	exitOnError("Ask", err)
	exitOnError("Output", cli.WriteAnswer(os.Stdout, answer, format))
}

func runIngest() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL, output := clientFlags(fs, args)
	text := fs.String("text", "", "ingest this text instead of a file")
	source := fs.String("source", "", "source file name recorded with text input")
	_ = fs.Parse(args)
	format := mustFormat(*output)

	client := cli.NewClient(*serverURL, 0)
	ctx := context.Background()

	if *text != "" {
		res, err := client.AddText(ctx, *text, *source)
		exitOnError("Ingest", err)
		exitOnError("Output", cli.WriteIngestResult(os.Stdout, res, format))
		return
	}
	if fs.NArg() < 1 {
		fmt.Println("Usage: ragbase ingest [flags] <file.pdf|file.txt|file.md>...")
		fmt.Println("       ragbase ingest --text \"...\" [--source name]")
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		ext := strings.ToLower(filepath.Ext(path))
		if !extract.Supports(ext) {
			fmt.Fprintf(os.Stderr, "Skipping %s: unsupported file type\n", path)
			continue
		}
		var (
			res *models.IngestResult
			err error
		)
		if ext == ".pdf" {
			res, err = client.UploadPDF(ctx, path)
		} else {
			var content string
			content, err = extract.NewExtractor().Extract(path)
			if err == nil {
				name := *source
				if name == "" {
					name = filepath.Base(path)
				}
				res, err = client.AddText(ctx, content, name)
			}
		}
		exitOnError("Ingest "+path, err)
		exitOnError("Output", cli.WriteIngestResult(os.Stdout, res, format))
	}
}

func runList() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL, output := clientFlags(fs, args)
	_ = fs.Parse(args)
	format := mustFormat(*output)

	list, err := cli.NewClient(*serverURL, 0).Chunks(context.Background())
	exitOnError("List", err)
	exitOnError("Output", cli.WriteChunks(os.Stdout, list, format))
}

func runClear() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	serverURL, _ := clientFlags(fs, args)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	_ = fs.Parse(args)

	if !*yes {
		fmt.Print("Delete every stored chunk? [y/N] ")
		var reply string
		_, _ = fmt.Scanln(&reply)
		if r := strings.ToLower(strings.TrimSpace(reply)); r != "y" && r != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}
	res, err := cli.NewClient(*serverURL, 0).Clear(context.Background())
	exitOnError("Clear", err)
	fmt.Printf("Deleted %d chunk(s)\n", res.Deleted)
}

func runStatus() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL, output := clientFlags(fs, args)
	_ = fs.Parse(args)
	format := mustFormat(*output)

	status, err := cli.NewClient(*serverURL, 30*time.Second).Status(context.Background())
	exitOnError("Status", err)
	exitOnError("Output", cli.WriteStatus(os.Stdout, status, format))
}

// Components holds initialized services.
type Components struct {
	Storage  *storage.SQLiteStorage
	Embedder embedding.Embedder
	Answerer *llm.OllamaClient
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.OpenAI.EmbeddingDimensions,
		Timeout:    cfg.OpenAI.Timeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chat, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
		Timeout: cfg.OpenAI.Timeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	answerer := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
	})

	logger.Info("models configured",
		zap.String("chat_model", chat.ModelName()),
		zap.String("embedding_model", embedder.ModelName()),
		zap.String("answer_model", answerer.ModelName()),
		zap.Bool("strict_taxonomy", cfg.Classifier.StrictOrDefault()))

	engine := search.NewEngine(store, embedder, answerer,
		search.WithDefaultTopK(cfg.Retrieval.DefaultTopK),
		search.WithLogger(logger))

	idx := indexer.NewIndexer(
		store,
		embedder,
		segment.New(chat, segment.WithLogger(logger)),
		classify.NewClassifier(chat,
			classify.WithStrictTaxonomy(cfg.Classifier.StrictOrDefault()),
			classify.WithLogger(logger)),
		classify.NewSignatureExtractor(chat, logger),
		indexer.WithExtractor(extract.NewExtractor()),
		indexer.WithLogger(logger),
	)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Answerer: answerer,
		Engine:   engine,
		Indexer:  idx,
	}, nil
}

func printUsage() {
	fmt.Println(`ragbase - question answering over your documents

Usage:
  ragbase server [flags]            Start the HTTP server
  ragbase ask [flags] <question>    Ask a question
  ragbase ingest [flags] <file>...  Ingest PDF, .txt or .md files (or --text)
  ragbase list [flags]              List stored chunks
  ragbase clear [flags]             Delete every stored chunk
  ragbase status [flags]            Show server/storage status
  ragbase version                   Show version
  ragbase help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ragbase/config.yaml)
  --debug            Enable debug logging

Client Flags (ask, ingest, list, clear, status):
  --config string    Config file path used to locate the server
  --server string    Server URL (default: from config, or http://localhost:8080)
  --output string    Output format: text or json (default: text)

Ask Flags:
  --top-k int             Number of context chunks, 1-10 (default from server config)
  --description string    Only use chunks whose category contains this text

Ingest Flags:
  --text string      Ingest this text instead of a file
  --source string    Source name recorded with the text

Clear Flags:
  --yes              Skip confirmation

Environment:
  OPENAI_API_KEY     Required by the server (may be set in a .env next to the config)
  OPENAI_BASE_URL    Optional OpenAI-compatible endpoint
  OLLAMA_BASE_URL    Optional Ollama endpoint

Examples:
  ragbase server
  ragbase ingest termo_adesao.pdf
  ragbase ingest --text "Eu Maria Souza, portador do RG 123, declaro..."
  ragbase ask quem assinou o documento?
  ragbase ask --description plano --top-k 5 "qual a cobertura?"
  ragbase list --output json
  ragbase clear --yes`)
}
