package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/agent"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/kb"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/llm"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/server"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/store"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL must be set")
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Open database connection
	dbConn, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}
	if err := store.Migrate(context.Background(), dbConn); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	repo := store.NewRepository(dbConn)

	// Initialize OpenAI client (uses env: OPENAI_API_KEY, OPENAI_MODEL_CHAT,
	// OPENAI_MODEL_VISION)
	llmClient := llm.NewOpenAIClient()
	pharmacist := agent.New(llmClient, repo, kb.NewCorpus(), logger.Named("agent"))

	// Optional redis cache for the alerts scan
	var cache server.KV
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		kv, err := server.NewRedisKV(context.Background(), addr)
		if err != nil {
			logger.Warn("redis unavailable, alerts cache disabled", zap.Error(err))
		} else {
			defer kv.Close()
			cache = kv
		}
	}

	srv := server.NewServer(repo, pharmacist, llmClient, cache, logger.Named("http"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	addr := ":" + port
	logger.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
