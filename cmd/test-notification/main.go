package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/seikokai/incident-workflow/internal/config"
	"github.com/seikokai/incident-workflow/internal/lineworks"
)

// Standalone smoke test for WORKS bot notifications. Exercises the full
// token / attachment / message chain against the live API without starting
// the server. Credentials come from .env or the environment, exactly as in
// production.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	account := flag.String("user", "", "WORKS account ID to message directly instead of the channel")
	file := flag.String("file", "", "File to upload to the channel")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.LineWorks.Enabled() {
		log.Fatal("WORKS credentials are not configured; set the LW_API_20_* variables")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	dispatcher := lineworks.NewDispatcher(lineworks.Config{
		ClientID:       cfg.LineWorks.ClientID,
		ClientSecret:   cfg.LineWorks.ClientSecret,
		ServiceAccount: cfg.LineWorks.ServiceAccount,
		PrivateKey:     cfg.LineWorks.PrivateKey,
		BotID:          cfg.LineWorks.BotID,
		ChannelID:      cfg.LineWorks.ChannelID,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	message := fmt.Sprintf("通知テスト %s", time.Now().Format("2006-01-02 15:04:05"))

	ok := false
	switch {
	case *account != "":
		fmt.Printf("Sending text to user %s...\n", *account)
		ok = dispatcher.SendTextToUser(ctx, *account, message)
	case *file != "":
		if _, err := os.Stat(*file); err != nil {
			log.Fatalf("Cannot read %s: %v", *file, err)
		}
		fmt.Printf("Uploading %s to the channel...\n", *file)
		ok = dispatcher.SendFileToChannel(ctx, *file)
	default:
		fmt.Println("Sending text to the channel...")
		ok = dispatcher.SendTextToChannel(ctx, message)
	}

	if !ok {
		fmt.Println("✗ Send failed; see the log output above")
		os.Exit(1)
	}
	fmt.Println("✓ Sent")
}
