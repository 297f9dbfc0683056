// Package main is a stdin/stdout REPL exercising the typed Chat operation
// against one tenant and folder. It is a development harness, not a
// production router: a real deployment wraps internal/core behind
// whatever transport it chooses.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/northbound/drive-chat/internal/chat"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/config"
	"github.com/northbound/drive-chat/internal/core"
	"github.com/northbound/drive-chat/internal/embeddings"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/retrieve"
	"github.com/northbound/drive-chat/internal/storage"
	"github.com/northbound/drive-chat/internal/sync"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file (optional, env vars override)")
	tenantID   = flag.String("tenant", "", "tenant id to chat as (required)")
	folderID   = flag.String("folder", "", "folder id to chat against (required)")
	agentMode  = flag.Bool("agent", false, "run the agentic tool-use loop instead of standard mode")
)

func main() {
	flag.Parse()
	if *tenantID == "" || *folderID == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-demo -tenant=<id> -folder=<id> [-agent]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logger.Infof("chat-demo: no .env file found, using environment variables: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("chat-demo: load config: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension)
	if err != nil {
		logger.Errorf("chat-demo: connect storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	embedderHTTP := embeddings.NewHTTPClient(cfg.EmbeddingServiceURL, cfg.EmbeddingAPIKey, cfg.EmbeddingDimension, cfg.EmbedderTimeout)
	embedder := embeddings.New(embedderHTTP, nil)
	rerankerClient := clients.NewRerankerClient(cfg.RerankerServiceURL, "", cfg.GeneratorTimeout)
	retriever := retrieve.New(store, embedder, rerankerClient, cfg.RerankEnabled)

	generatorClient := clients.NewGeneratorClient(cfg.GeneratorServiceURL, cfg.GeneratorAPIKey, cfg.GeneratorTimeout)
	chatService := chat.NewService(store, retriever, generatorClient, cfg.MaxIterations)

	driveClient := clients.NewDriveClient(cfg.DriveServiceURL, "", cfg.DriveTimeout)
	synchronizer := sync.New(store, driveClient, nil)

	c := core.New(store, synchronizer, chatService)

	fmt.Printf("chat-demo: tenant=%s folder=%s agent=%v (blank line to quit)\n", *tenantID, *folderID, *agentMode)

	scanner := bufio.NewScanner(os.Stdin)
	var conversationID string
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			return
		}

		events, err := c.Chat(ctx, chat.Request{
			TenantID:       *tenantID,
			FolderID:       *folderID,
			Message:        line,
			ConversationID: conversationID,
			AgentMode:      *agentMode,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		for evt := range events {
			switch evt.Kind {
			case chat.EventStatus:
				fmt.Fprintf(os.Stderr, "[%s] %s\n", evt.Status.Phase, evt.Status.Tool)
			case chat.EventToken:
				fmt.Print(evt.Token)
			case chat.EventDone:
				conversationID = evt.Done.ConversationID
				fmt.Println()
				if len(evt.Done.Citations) > 0 {
					fmt.Println("sources:")
					for n, cite := range evt.Done.Citations {
						fmt.Printf("  [%s] %s\n", n, cite.FileName)
					}
				}
			case chat.EventError:
				fmt.Fprintf(os.Stderr, "\nerror (%s): %s\n", evt.Error.Kind, evt.Error.Message)
			}
		}
	}
}
