package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-expense/internal/bootstrap"
	"github.com/dvloznov/voice-expense/internal/config"
	"github.com/dvloznov/voice-expense/internal/domain"
	"github.com/dvloznov/voice-expense/internal/logger"
	"github.com/dvloznov/voice-expense/internal/pipeline"
	"github.com/dvloznov/voice-expense/internal/transcription"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewForEnv(cfg.App.Env, cfg.App.LogLevel)

	switch os.Args[1] {
	case "parse":
		runParse(cfg, log)
	case "usage":
		runUsage(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Voice Expense CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Extract expenses from text or an audio file")
	fmt.Println("  usage     Show today's extraction usage for a user")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runParse(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "Transcribed text to parse")
	audioPath := fs.String("audio", "", "Path to an audio recording to transcribe and parse")
	userID := fs.String("user", "cli", "User ID charged for the extraction")
	tier := fs.String("tier", string(domain.TierPro), "Subscription tier (trial, free, pro)")
	fs.Parse(os.Args[2:])

	if (*text == "") == (*audioPath == "") {
		log.Fatal().Msg("Usage: cli parse (-text TEXT | -audio FILE) [-user ID] [-tier TIER]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	app, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction pipeline")
	}
	defer app.Close()
	defer app.Tracker.Flush(2 * time.Second)

	req := pipeline.Request{
		UserID: *userID,
		Tier:   domain.ParseTier(*tier),
		Text:   *text,
	}

	if *audioPath != "" {
		f, err := os.Open(*audioPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open audio file")
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to stat audio file")
		}
		req.Audio = &transcription.Audio{
			Filename: filepath.Base(*audioPath),
			Size:     info.Size(),
			Body:     f,
		}
	}

	log.Info().Str("user_id", req.UserID).Str("tier", string(req.Tier)).Msg("Starting extraction")

	resp, err := app.Pipeline.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	if resp.Transcript != "" && req.Audio != nil {
		fmt.Printf("Transcript: %s\n\n", resp.Transcript)
	}
	printJSON(map[string]any{
		"expenses":   resp.Result.Entries,
		"confidence": resp.Result.Confidence,
		"usage":      resp.Usage,
	})
}

func runUsage(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	tier := fs.String("tier", string(domain.TierFree), "Subscription tier (trial, free, pro)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	app, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction pipeline")
	}
	defer app.Close()

	snap, err := app.Governor.Remaining(ctx, *userID, domain.ParseTier(*tier))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read usage")
	}

	fmt.Printf("Day:       %s\n", app.Governor.Today())
	fmt.Printf("Used:      %d\n", snap.Used)
	fmt.Printf("Limit:     %d\n", snap.Limit)
	fmt.Printf("Remaining: %d\n", snap.Remaining)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
	}
}
