package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
	"github.com/tgparkk/AutoSwingTrade/internal/infrastructure/broker"
	"github.com/tgparkk/AutoSwingTrade/internal/infrastructure/logger"
	"github.com/tgparkk/AutoSwingTrade/internal/infrastructure/storage"
	"github.com/tgparkk/AutoSwingTrade/internal/usecase"
	"github.com/tgparkk/AutoSwingTrade/internal/web"
)

type Config struct {
	Trading domain.TradingConfig `yaml:"trading"`
	Broker  struct {
		InitialCash float64            `yaml:"initial_cash"`
		Retry       broker.RetryConfig `yaml:"retry"`
	} `yaml:"broker"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Config{Trading: domain.DefaultTradingConfig()}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// Optional .env for local overrides
	_ = godotenv.Load()

	// 1. Load Config
	configPath := "config/config.yaml"
	if v := os.Getenv("BOT_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Trading.Validate(); err != nil {
		fmt.Printf("Invalid trading config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Broker (paper account, transient failures retried)
	initialCash := cfg.Broker.InitialCash
	if v := os.Getenv("PAPER_INITIAL_CASH"); v != "" {
		if cash, err := strconv.ParseFloat(v, 64); err == nil {
			initialCash = cash
		}
	}
	if initialCash <= 0 {
		initialCash = 10_000_000
	}
	paper := broker.NewPaperBroker(initialCash)
	brk := broker.WithRetry(paper, cfg.Broker.Retry)

	// 5. Init Core
	positions := usecase.NewPositionManager(&cfg.Trading, store, log)
	orders := usecase.NewOrderManager(brk, &cfg.Trading, log)
	risk := usecase.NewRiskCalculator(cfg.Trading.Exit)
	bot := usecase.NewTradingBot(&cfg.Trading, brk, positions, orders, risk, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.Start(ctx); err != nil {
		log.Fatal("Failed to start bot", zap.Error(err))
	}

	// 6. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, bot, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	bot.Stop()
	server.Shutdown(context.Background())
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	}
	return logger.NewLogger(cfg.Logging.Level)
}
