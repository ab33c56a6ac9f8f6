package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"echopilot/capture"
	"echopilot/config"
	"echopilot/core"
	"echopilot/export"
	"echopilot/responder"
	"echopilot/segmenter"
	"echopilot/services/openai/llm"
	"echopilot/services/openai/stt"
	"echopilot/transcript"
	websockettransport "echopilot/transports/websocket"
)

// fullClear resets the whole conversation: queued audio, buffers, the
// transcript, and every stored response.
type fullClear struct {
	seg      *segmenter.Segmenter
	registry *responder.Registry
}

func (c fullClear) ClearContext() {
	c.seg.ClearContext()
	c.registry.Clear()
}

func main() {
	var (
		configPath   string
		listenAddr   string
		recordOnly   bool
		exportOnExit string
	)
	flag.StringVar(&configPath, "config", "", "path to a JSON config file (defaults apply when empty)")
	flag.StringVar(&listenAddr, "addr", "", "override the websocket listen address")
	flag.BoolVar(&recordOnly, "record-only", false, "transcribe and store phrases without generating responses")
	flag.StringVar(&exportOnExit, "export-on-exit", "", "write the conversation document to this path on shutdown")
	flag.Parse()

	logger := core.GetLogger()

	if err := godotenv.Load(".env"); err != nil {
		logger.Warn("no .env file found or failed to load", "error", err)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.FromFile(configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if recordOnly {
		cfg.RecordOnlyMode = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")

	transcriberService, err := stt.NewWhisperTranscriber(apiKey, cfg.TranscriptionModel, logger)
	if err != nil {
		logger.Fatalf("init transcriber: %v", err)
	}
	generatorService, err := llm.NewChatGenerator(apiKey, cfg.CompletionModel, logger)
	if err != nil {
		logger.Fatalf("init generator: %v", err)
	}

	registry := responder.NewRegistry()
	store := transcript.NewStore(registry, cfg.RecordOnlyMode, logger)
	queue := capture.NewQueue()
	seg := segmenter.New(cfg, queue, store, transcriberService, logger)
	resp := responder.NewResponder(cfg, registry, store, generatorService, logger)
	exporter := export.NewExporter(store, registry, cfg.ExportLegacyShift, logger)
	clearer := fullClear{seg: seg, registry: registry}
	server := websockettransport.NewServer(cfg, queue, store, registry, exporter, clearer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go seg.Run(ctx)
	go resp.Run(ctx)
	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Error("websocket server failed", "error", err)
			stop()
		}
	}()

	logger.Info("pipeline started",
		"addr", cfg.ListenAddr,
		"phrase_timeout_s", cfg.PhraseTimeoutSeconds,
		"buffer_chunks", cfg.BufferChunks,
		"record_only", cfg.RecordOnlyMode,
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	if exportOnExit != "" {
		if err := exporter.SaveConversation(exportOnExit, false); err != nil {
			logger.Error("export on exit failed", "error", err)
		}
	}
}
