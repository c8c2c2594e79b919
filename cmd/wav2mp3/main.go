package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/petii/mp3-magic-machine/internal/audio"
	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/logging"
	"github.com/petii/mp3-magic-machine/internal/pipeline"
	"github.com/petii/mp3-magic-machine/internal/staging"
)

func main() {
	outDir := flag.String("out", "", "Output directory (default: next to the input file)")
	policy := flag.String("policy", config.PolicyLenient, "Decode policy: lenient or strict")
	quality := flag.Int("quality", 2, "LAME algorithm quality, 0 (best) to 9 (fastest)")
	bitrate := flag.Int("bitrate", 0, "Bitrate in kbps (0 keeps the encoder default)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file.wav>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	decodeCfg := config.DecodeConfig{Policy: *policy}
	if err := decodeCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -policy: %v\n", err)
		os.Exit(2)
	}
	encoderCfg := config.EncoderConfig{Quality: *quality, BitrateKbps: *bitrate}
	if err := encoderCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid encoder settings: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(config.LoggingConfig{Level: *logLevel, Format: "text", Output: "stderr"})

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, path, dir, decodeCfg, encoderCfg); err != nil {
		logger.Error("Transcoding failed", slog.String("input", path), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, path, dir string, decodeCfg config.DecodeConfig, encoderCfg config.EncoderConfig) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	// Local transcoding needs no object store; the delivery options are unused
	orchestrator, err := pipeline.New(pipeline.Deps{
		Options: pipeline.Options{
			Mode:        config.DeliveryPerObject,
			Policy:      audio.ParsePolicy(decodeCfg.Policy),
			Quality:     encoderCfg.Quality,
			BitrateKbps: encoderCfg.BitrateKbps,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	files, err := orchestrator.Transcode(ctx, src, staging.BaseName(path), dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Println(f.Path)
	}
	return nil
}
