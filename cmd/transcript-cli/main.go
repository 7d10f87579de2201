package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transcriptfetch/internal/adapters/innertube"
	"transcriptfetch/internal/adapters/localstorage"
	"transcriptfetch/internal/adapters/transport"
	"transcriptfetch/internal/adapters/watchpage"
	"transcriptfetch/internal/adapters/ytdlp"
	"transcriptfetch/internal/core/domain"
	"transcriptfetch/internal/core/ports"
	"transcriptfetch/internal/format"
	"transcriptfetch/internal/service"
	"transcriptfetch/internal/videoid"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	// Parse flags
	urlArg := flag.String("url", "", "YouTube video URL or bare 11-character video ID")
	lang := flag.String("lang", domain.DefaultLanguage, "Preferred caption language code")
	outFormat := flag.String("format", "text", "Output format: text, srt or json")
	outDir := flag.String("out", "", "If set, write the transcript artifact under this directory")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline for the acquisition")
	flag.Parse()

	if *urlArg == "" {
		fmt.Println("Usage: transcript-cli -url <video-url-or-id> [-lang en] [-format text|srt|json] [-out <dir>]")
		fmt.Println("\nExample:")
		fmt.Println("  transcript-cli -url https://www.youtube.com/watch?v=jNQXAC9IVRw -lang en -format srt")
		os.Exit(1)
	}

	logger := newLogger()

	videoID, ok := videoid.Extract(*urlArg)
	if !ok {
		logger.Error("could not extract an 11-character video id", slog.String("input", *urlArg))
		os.Exit(1)
	}

	client, err := transport.New(transport.Options{
		ProxyURL:          os.Getenv("PROXY_URL"),
		Timeout:           envDuration("FETCH_TIMEOUT", 30*time.Second),
		RequestsPerSecond: 2,
	})
	if err != nil {
		logger.Error("failed to initialize transport", slog.Any("error", err))
		os.Exit(1)
	}

	strategies := []ports.Strategy{
		innertube.New(client, logger),
		watchpage.New(client, logger),
		ytdlp.New(client, logger),
	}
	orchestrator := service.NewOrchestrator(strategies, service.DefaultConfig(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transcript, err := orchestrator.FetchTranscript(ctx, videoID, *lang)
	if err != nil {
		logger.Error("acquisition failed", slog.Any("error", err))
		os.Exit(1)
	}

	output, filename, err := render(transcript, *outFormat)
	if err != nil {
		logger.Error("failed to render output", slog.Any("error", err))
		os.Exit(1)
	}

	if *outDir != "" {
		sink := localstorage.NewLocalSink(*outDir)
		if err := sink.Save(ctx, videoID, filename, []byte(output)); err != nil {
			logger.Error("failed to save transcript", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("transcript saved",
			slog.String("path", sink.Path(videoID)),
			slog.Int("segments", len(transcript.Segments)))
		return
	}

	fmt.Print(output)
	if !strings.HasSuffix(output, "\n") {
		fmt.Println()
	}
}

func render(t *domain.Transcript, f string) (output, filename string, err error) {
	switch strings.ToLower(f) {
	case "text":
		return format.Text(t), "transcript.txt", nil
	case "srt":
		return format.SRT(t), "transcript.srt", nil
	case "json":
		out, err := format.JSON(t)
		return out, "transcript.json", err
	default:
		return "", "", fmt.Errorf("unknown output format %q (want text, srt or json)", f)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
