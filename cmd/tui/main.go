package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/nany-chat/internal/chat"
	"github.com/MegaGrindStone/nany-chat/internal/models"
	"github.com/MegaGrindStone/nany-chat/internal/services"
	"github.com/MegaGrindStone/nany-chat/internal/stream"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const defaultEndpoint = "http://127.0.0.1:5000/chat"

var (
	endpoint string
	dbPath   string
	debug    bool
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(fmt.Errorf("error loading .env file: %w", err))
	}

	flag.StringVar(&endpoint, "endpoint", envOr("NANYCHAT_ENDPOINT", defaultEndpoint), "chat endpoint to stream responses from")
	flag.StringVar(&dbPath, "db", "", "transcript database, defaults to <user config dir>/nanychat/tui.db")
	flag.BoolVar(&debug, "debug", false, "show the debug console")
	flag.Parse()

	if dbPath == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
		}
		cfgPath := filepath.Join(cfgDir, "nanychat")
		if err := os.MkdirAll(cfgPath, 0755); err != nil {
			log.Fatal(fmt.Errorf("error creating config directory: %w", err))
		}
		dbPath = filepath.Join(cfgPath, "tui.db")
	}

	u := newUI(debug)
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(u.logWriter(), &slog.HandlerOptions{Level: level}))

	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	convID, err := boltDB.AddConversation(ctx, models.Conversation{
		ID:    uuid.New().String(),
		Title: "Terminal session " + time.Now().Format(time.DateTime),
	})
	if err != nil {
		log.Fatal(err)
	}

	client, err := stream.NewClient(endpoint, logger)
	if err != nil {
		log.Fatal(err)
	}

	transcript, err := chat.NewTranscript(ctx, convID, boltDB, u.update)
	if err != nil {
		log.Fatal(err)
	}
	c := chat.New(transcript, stream.NewAccumulator(client, logger), logger)

	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()

	logger.Info("Chat started", slog.String("endpoint", endpoint), slog.String("conversation", convID))
	if err := u.run(ctx, c, logger); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
