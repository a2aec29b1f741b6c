package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nanychat "github.com/MegaGrindStone/nany-chat"
	"github.com/MegaGrindStone/nany-chat/internal/handlers"
	"github.com/MegaGrindStone/nany-chat/internal/services"
	"github.com/MegaGrindStone/nany-chat/internal/stream"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func main() {
	// API keys may come from a .env file in the working directory.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(fmt.Errorf("error loading .env file: %w", err))
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "nanychat")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	level, err := cfg.logLevel()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var llm handlers.LLM
	if cfg.LLM != nil {
		llm, err = cfg.LLM.llm(cfg.systemPrompt(), logger)
		if err != nil {
			log.Fatal(fmt.Errorf("error creating llm: %w", err))
		}
	}

	upstream, err := cfg.upstream()
	if err != nil {
		log.Fatal(err)
	}
	client, err := stream.NewClient(upstream, logger)
	if err != nil {
		log.Fatal(err)
	}

	boltDB, err := services.NewBoltDB(filepath.Join(cfgPath, "store.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	m, err := handlers.NewMain(llm, boltDB, client, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(nanychat.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("/sse/messages", m.HandleSSE)
	if llm != nil {
		mux.HandleFunc("/chat", m.HandleChat)
	}

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.port(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("addr", srv.Addr),
			slog.String("upstream", upstream),
			slog.Bool("chatEndpoint", llm != nil))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

func loadConfig(path string) (config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}
