// Package slack provides the Slack transport using Socket Mode. Each Slack
// user is one customer; replies are posted to their direct-message channel.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/ireland-samantha/shopkeeper-bot/internal/config"
	"github.com/ireland-samantha/shopkeeper-bot/internal/dispatch"
)

// SlashCommand routes to the admin reports.
const SlashCommand = "/shopkeeper"

// Handler queues an inbound message and returns the function that handles it.
type Handler interface {
	Accept(in dispatch.Inbound) func(ctx context.Context) string
}

// slackAPI is the subset of the Web API the bot uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Bot manages the Slack connection and event handling.
type Bot struct {
	api          slackAPI
	socketClient *socketmode.Client
	handler      Handler
	adminPrefix  string
	botUserID    string
	logger       *slog.Logger

	mu       sync.Mutex
	channels map[string]string
	names    map[string]string
	inflight sync.WaitGroup
}

// NewBot creates a new Slack bot instance.
func NewBot(cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	client := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.LogLevel == "debug"),
	)

	// Get bot user ID so our own messages are ignored
	authTest, err := client.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}

	b := newBot(client, cfg.AdminPrefix, logger)
	b.socketClient = socketClient
	b.botUserID = authTest.UserID
	return b, nil
}

func newBot(api slackAPI, adminPrefix string, logger *slog.Logger) *Bot {
	if adminPrefix == "" {
		adminPrefix = dispatch.DefaultAdminPrefix
	}
	return &Bot{
		api:         api,
		adminPrefix: adminPrefix,
		logger:      logger,
		channels:    make(map[string]string),
		names:       make(map[string]string),
	}
}

// Run starts the bot and blocks until the context is cancelled. Messages
// still being handled are waited for before returning.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	b.handler = handler
	go b.handleEvents(ctx)

	b.logger.Info("starting Slack bot", "bot_user_id", b.botUserID)
	err := b.socketClient.RunContext(ctx)
	b.inflight.Wait()
	return err
}

// handleEvents processes incoming Socket Mode events.
func (b *Bot) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.socketClient.Events:
			b.handleEvent(ctx, evt)
		}
	}
}

// handleEvent routes a single event to the appropriate handler.
func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socketClient.Ack(*evt.Request)
		if eventsAPIEvent.Type == slackevents.CallbackEvent {
			if msg, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				b.handleMessageEvent(ctx, msg)
			}
		}
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.socketClient.Ack(*evt.Request)
		b.handleSlashCommand(ctx, cmd)
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Slack...")
	case socketmode.EventTypeConnected:
		b.logger.Info("connected to Slack")
	case socketmode.EventTypeConnectionError:
		b.logger.Error("connection error", "error", evt.Data)
	}
}

// handleMessageEvent turns a direct message into an inbound message.
func (b *Bot) handleMessageEvent(ctx context.Context, evt *slackevents.MessageEvent) {
	// Ignore bot messages, edits and joins
	if evt.BotID != "" || evt.SubType != "" || evt.User == "" || evt.User == b.botUserID {
		return
	}
	if evt.ChannelType != "im" {
		return
	}

	b.mu.Lock()
	b.channels[evt.User] = evt.Channel
	b.mu.Unlock()

	b.dispatch(ctx, dispatch.Inbound{
		CustomerID:  evt.User,
		Text:        evt.Text,
		DisplayName: b.displayName(ctx, evt.User),
	})
}

// handleSlashCommand maps /shopkeeper <command> onto the admin prefix.
func (b *Bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	if cmd.Command != SlashCommand {
		return
	}
	b.dispatch(ctx, dispatch.Inbound{
		CustomerID: cmd.UserID,
		Text:       b.adminPrefix + strings.TrimSpace(cmd.Text),
	})
}

// dispatch queues the message in event order and handles it without blocking
// the event loop.
func (b *Bot) dispatch(ctx context.Context, in dispatch.Inbound) {
	b.logger.Debug("processing message", "user", in.CustomerID)
	run := b.handler.Accept(in)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		run(ctx)
	}()
}

// displayName looks up and caches the user's name. Lookup failures yield "".
func (b *Bot) displayName(ctx context.Context, userID string) string {
	b.mu.Lock()
	name, ok := b.names[userID]
	b.mu.Unlock()
	if ok {
		return name
	}

	user, err := b.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		b.logger.Warn("user lookup failed", "user", userID, "error", err)
		return ""
	}
	name = user.Profile.FirstName
	if name == "" {
		name = user.Profile.DisplayName
	}
	if name == "" {
		name = user.RealName
	}

	b.mu.Lock()
	b.names[userID] = name
	b.mu.Unlock()
	return name
}

// Send posts text to the customer's direct-message channel, opening it if
// the customer has not written to the bot before.
func (b *Bot) Send(ctx context.Context, customerID, text string) error {
	channelID, err := b.dmChannel(ctx, customerID)
	if err != nil {
		return err
	}
	_, _, err = b.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(FormatText(text), false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func (b *Bot) dmChannel(ctx context.Context, userID string) (string, error) {
	b.mu.Lock()
	channelID, ok := b.channels[userID]
	b.mu.Unlock()
	if ok {
		return channelID, nil
	}

	ch, _, _, err := b.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return "", fmt.Errorf("slack: open conversation: %w", err)
	}

	b.mu.Lock()
	b.channels[userID] = ch.ID
	b.mu.Unlock()
	return ch.ID, nil
}

// Wait blocks until every dispatched message has been handled.
func (b *Bot) Wait() {
	b.inflight.Wait()
}
