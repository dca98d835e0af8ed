package slack

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/require"

	"github.com/ireland-samantha/shopkeeper-bot/internal/dispatch"
)

type fakeAPI struct {
	mu        sync.Mutex
	posted    map[string]int
	opened    int
	lookups   int
	lookupErr error
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted[channelID]++
	return channelID, "1.0", nil
}

func (f *fakeAPI) OpenConversationContext(_ context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	ch := &slack.Channel{}
	ch.ID = "D-" + params.Users[0]
	return ch, false, false, nil
}

func (f *fakeAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return &slack.User{ID: user, RealName: "Ana Pérez", Profile: slack.UserProfile{FirstName: "Ana"}}, nil
}

type recordingHandler struct {
	mu       sync.Mutex
	accepted []string
	got      []dispatch.Inbound
}

// Accept records the arrival order synchronously, the handled order when the
// returned function runs.
func (h *recordingHandler) Accept(in dispatch.Inbound) func(context.Context) string {
	h.mu.Lock()
	h.accepted = append(h.accepted, in.Text)
	h.mu.Unlock()
	return func(context.Context) string {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.got = append(h.got, in)
		return ""
	}
}

func newTestBot() (*Bot, *fakeAPI, *recordingHandler) {
	api := &fakeAPI{posted: map[string]int{}}
	h := &recordingHandler{}
	b := newBot(api, "#", slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.botUserID = "UBOT"
	b.handler = h
	return b, api, h
}

func TestHandleMessageEvent_DirectMessage(t *testing.T) {
	b, api, h := newTestBot()
	ctx := context.Background()

	b.handleMessageEvent(ctx, &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", Text: "hola"})
	b.handleMessageEvent(ctx, &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", Text: "tenés iphone?"})
	b.Wait()

	require.Len(t, h.got, 2)
	require.Equal(t, []string{"hola", "tenés iphone?"}, h.accepted)
	require.Contains(t, h.got, dispatch.Inbound{CustomerID: "U1", Text: "hola", DisplayName: "Ana"})
	require.Equal(t, 1, api.lookups, "display name is cached")

	// Replies reuse the channel the customer wrote from.
	require.NoError(t, b.Send(ctx, "U1", "¡Hola!"))
	require.Equal(t, 1, api.posted["D1"])
	require.Zero(t, api.opened)
}

func TestHandleMessageEvent_Ignored(t *testing.T) {
	b, _, h := newTestBot()
	ctx := context.Background()

	b.handleMessageEvent(ctx, &slackevents.MessageEvent{User: "U1", ChannelType: "channel", Text: "hola"})
	b.handleMessageEvent(ctx, &slackevents.MessageEvent{BotID: "B1", ChannelType: "im", Text: "hola"})
	b.handleMessageEvent(ctx, &slackevents.MessageEvent{User: "U1", SubType: "message_changed", ChannelType: "im"})
	b.handleMessageEvent(ctx, &slackevents.MessageEvent{User: "UBOT", ChannelType: "im", Text: "eco"})
	b.Wait()

	require.Empty(t, h.got)
}

func TestDisplayName_LookupFailure(t *testing.T) {
	b, api, h := newTestBot()
	api.lookupErr = errors.New("user_not_found")

	b.handleMessageEvent(context.Background(), &slackevents.MessageEvent{User: "U2", Channel: "D2", ChannelType: "im", Text: "hola"})
	b.Wait()
	require.Equal(t, "", h.got[0].DisplayName)
}

func TestHandleSlashCommand_UsesAdminPrefix(t *testing.T) {
	b, _, h := newTestBot()

	b.handleSlashCommand(context.Background(), slack.SlashCommand{Command: SlashCommand, UserID: "U9", Text: " stock "})
	b.handleSlashCommand(context.Background(), slack.SlashCommand{Command: "/other", UserID: "U9", Text: "stock"})
	b.Wait()

	require.Equal(t, []dispatch.Inbound{{CustomerID: "U9", Text: "#stock"}}, h.got)
}

func TestSend_OpensConversationOnce(t *testing.T) {
	b, api, _ := newTestBot()
	ctx := context.Background()

	require.NoError(t, b.Send(ctx, "U3", "a"))
	require.NoError(t, b.Send(ctx, "U3", "b"))
	require.Equal(t, 1, api.opened)
	require.Equal(t, 2, api.posted["D-U3"])
}

func TestFormatText(t *testing.T) {
	require.Equal(t, "1 &lt; 2 &amp;&amp; 3 &gt; 2", FormatText("1 < 2 && 3 > 2"))
	require.Equal(t, "ab...", TruncateText("abcdefgh", 5))
	require.Equal(t, "abc", TruncateText("abcdefgh", 3))
	// "ñ" is two bytes and must not be split.
	require.Equal(t, "a...", TruncateText("añbcdef", 5))
}
