package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/rag-assistant/backend/internal/bootstrap"
	"github.com/zhouzirui/rag-assistant/backend/internal/config"
	"github.com/zhouzirui/rag-assistant/backend/internal/retrieval"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dir := flag.String("dir", "./docs", "folder with .txt/.md/.pdf/.docx documents to index")
	collection := flag.String("collection", cfg.Retrieval.Collection, "Qdrant collection name")
	chunkSize := flag.Int("chunk-size", cfg.Retrieval.ChunkSize, "chunk size in characters")
	chunkOverlap := flag.Int("chunk-overlap", cfg.Retrieval.ChunkOverlap, "overlap between chunks in characters")
	batch := flag.Int("batch", 64, "chunks embedded per request")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall timeout")
	flag.Parse()

	rc := cfg.Retrieval
	rc.Collection = *collection
	rc.ChunkSize = *chunkSize
	rc.ChunkOverlap = *chunkOverlap

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	docs, err := retrieval.LoadDocuments(ctx, *dir)
	if err != nil {
		log.Fatalf("failed to load documents: %v", err)
	}
	if len(docs) == 0 {
		log.Printf("no documents found in %s", *dir)
		return
	}
	log.Printf("loaded %d documents from %s", len(docs), *dir)

	rt, err := bootstrap.OpenRetrieval(rc)
	if err != nil {
		log.Fatalf("failed to connect retrieval backends: %v", err)
	}
	defer rt.Close()

	indexer, err := bootstrap.NewIndexer(ctx, rc, rt, *batch)
	if err != nil {
		log.Fatalf("failed to build indexer: %v", err)
	}

	start := time.Now()
	n, err := indexer.Index(ctx, docs)
	if err != nil {
		log.Fatalf("indexing failed after %d chunks: %v", n, err)
	}
	log.Printf("indexed %d chunks into %s in %s", n, rc.Collection, time.Since(start).Round(time.Millisecond))
}
