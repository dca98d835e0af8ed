// Package main is the entry point for the Shopkeeper Bot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"

	"github.com/ireland-samantha/shopkeeper-bot/internal/backend"
	"github.com/ireland-samantha/shopkeeper-bot/internal/booking"
	"github.com/ireland-samantha/shopkeeper-bot/internal/config"
	"github.com/ireland-samantha/shopkeeper-bot/internal/dispatch"
	"github.com/ireland-samantha/shopkeeper-bot/internal/llm"
	"github.com/ireland-samantha/shopkeeper-bot/internal/nlu"
	"github.com/ireland-samantha/shopkeeper-bot/internal/paramstore"
	"github.com/ireland-samantha/shopkeeper-bot/internal/payment"
	"github.com/ireland-samantha/shopkeeper-bot/internal/sales"
	"github.com/ireland-samantha/shopkeeper-bot/internal/server"
	"github.com/ireland-samantha/shopkeeper-bot/internal/slack"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
	"github.com/ireland-samantha/shopkeeper-bot/internal/webhook"
)

func main() {
	// Setup logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHOPKEEPER_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Shopkeeper Bot...")

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// AWS is only needed for DynamoDB and Parameter Store
	var awsCfg *aws.Config
	if cfg.Backend == config.BackendDynamoDB || cfg.ConversationStore == config.ConversationDynamoDB || cfg.SSMPrefix != "" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("Failed to load AWS configuration", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	if cfg.SSMPrefix != "" {
		params, err := paramstore.New(ssm.NewFromConfig(*awsCfg))
		if err != nil {
			logger.Error("Failed to create parameter store client", "error", err)
			os.Exit(1)
		}
		if err := cfg.ResolveSecrets(ctx, params); err != nil {
			logger.Error("Failed to resolve secrets", "error", err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded",
		"backend", cfg.Backend,
		"conversation_store", cfg.ConversationStore,
		"transport", cfg.Transport,
		"llm_provider", cfg.LLMProvider,
		"log_level", cfg.LogLevel,
	)

	var ddb *dynamodb.Client
	if awsCfg != nil {
		ddb = dynamodb.NewFromConfig(*awsCfg)
	}

	// Backend, chosen once
	opened, err := backend.Open(ctx, cfg, ddb, logger)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		os.Exit(1)
	}
	defer opened.Close()
	access := backend.NewAccess(opened.Backend, backend.NewCache(cfg.CacheTTL), logger)

	// Conversation store
	var store storage.ConversationStore
	switch cfg.ConversationStore {
	case config.ConversationDynamoDB:
		store, err = storage.NewDynamoStore(ddb, cfg.ConversationTable, cfg.ConversationTTL, logger)
		if err != nil {
			logger.Error("Failed to create conversation store", "error", err)
			os.Exit(1)
		}
	default:
		mem := storage.NewMemoryStore(cfg.ConversationTTL)
		go mem.RunJanitor(ctx, cfg.ConversationTTL/2)
		store = mem
	}

	// Language understanding
	provider, err := llm.New(cfg)
	if err != nil {
		logger.Error("Failed to create LLM provider", "error", err)
		os.Exit(1)
	}
	understanding := nlu.NewService(provider, cfg.Location(), logger)

	// Payments
	gateway, err := payment.NewHTTPGateway(cfg.PaymentAPIURL, cfg.PaymentAccessToken, nil)
	if err != nil {
		logger.Error("Failed to create payment gateway", "error", err)
		os.Exit(1)
	}
	reconciler := payment.NewReconciler(gateway, store, cfg.PaymentTolerance, cfg.PaymentLookback, logger)

	orchestrator := sales.New(access, logger)
	bookings := booking.NewManager(store, understanding, access, orchestrator, cfg.DefaultStore, logger)

	// Transport
	var (
		sender dispatch.Sender
		bot    *slack.Bot
	)
	switch cfg.Transport {
	case config.TransportSlack:
		bot, err = slack.NewBot(cfg, logger)
		if err != nil {
			logger.Error("Failed to create Slack bot", "error", err)
			os.Exit(1)
		}
		sender = bot
	case config.TransportWebhook:
		sender, err = webhook.NewSender(cfg.WebhookOutboundURL, nil)
		if err != nil {
			logger.Error("Failed to create webhook sender", "error", err)
			os.Exit(1)
		}
	}

	dispatcher := dispatch.New(dispatch.Deps{
		Store:    store,
		NLU:      understanding,
		Catalog:  access,
		Booking:  bookings,
		Sales:    orchestrator,
		Payments: reconciler,
		Sender:   sender,
	}, dispatch.Options{
		AdminPrefix:  cfg.AdminPrefix,
		ReplyDelay:   cfg.ReplyDelay,
		SendAttempts: cfg.SendAttempts,
		Location:     cfg.Location(),
	}, logger)

	// Run the HTTP server and, for Slack, the socket connection
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg.HTTPAddr, dispatcher, store, access, logger).Run(gctx)
	})
	if bot != nil {
		g.Go(func() error {
			if err := bot.Run(gctx, dispatcher); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	logger.Info("Shopkeeper Bot is running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		logger.Error("Bot error", "error", err)
		opened.Close()
		os.Exit(1)
	}

	logger.Info("Shopkeeper Bot stopped.")
}
