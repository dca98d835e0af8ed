package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/llm"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// historyWindow is how many recent messages are sent as context.
const historyWindow = storage.RecentWindow

var weekdayNames = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// ReplyContext bundles what GenerateReply may talk about.
type ReplyContext struct {
	CustomerName string
	Business     domain.BusinessInfo
	Stores       []domain.StoreInfo
	Products     []domain.StockItem
	History      []storage.Message
	// Instruction tells the model what this reply must achieve.
	Instruction string
}

// Service implements language understanding over an llm.Provider.
type Service struct {
	provider llm.Provider
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a Service. Relative dates resolve in loc.
func NewService(provider llm.Provider, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		provider: provider,
		loc:      loc,
		now:      time.Now,
		logger:   logger.With("llm", provider.Name()),
	}
}

func (s *Service) completeJSON(ctx context.Context, system string, messages []llm.Message, out any) error {
	raw, err := s.provider.Complete(ctx, llm.Request{
		System:    system,
		Messages:  messages,
		MaxTokens: 256,
		JSONMode:  true,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), out); err != nil {
		return fmt.Errorf("nlu: decoding model output: %w", err)
	}
	return nil
}

// ClassifyIntent labels text. Unknown labels come back as IntentOther; errors
// are returned so the caller can decide the fallback.
func (s *Service) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	var out struct {
		Intent string `json:"intent"`
	}
	err := s.completeJSON(ctx, classifyPrompt(), []llm.Message{{Role: llm.RoleUser, Content: text}}, &out)
	if err != nil {
		return IntentOther, fmt.Errorf("nlu: classify: %w", err)
	}
	intent := ParseIntent(out.Intent)
	s.logger.Debug("Classified message", "intent", intent.String(), "label", out.Intent)
	return intent, nil
}

// ExtractAppointmentSlots reads date, time, name and product from text.
// Relative dates and loose times are normalized; values that cannot be
// normalized are dropped.
func (s *Service) ExtractAppointmentSlots(ctx context.Context, text string, history []storage.Message) (domain.AppointmentDraft, error) {
	now := s.now().In(s.loc)
	var out struct {
		Date    string `json:"date"`
		Time    string `json:"time"`
		Name    string `json:"name"`
		Product string `json:"product"`
	}
	messages := append(historyMessages(history, text), llm.Message{Role: llm.RoleUser, Content: text})
	prompt := slotsPrompt(now.Format(time.DateOnly), weekdayNames[now.Weekday()])
	if err := s.completeJSON(ctx, prompt, messages, &out); err != nil {
		return domain.AppointmentDraft{}, fmt.Errorf("nlu: extract slots: %w", err)
	}

	draft := domain.AppointmentDraft{
		Name:    strings.TrimSpace(out.Name),
		Product: strings.TrimSpace(out.Product),
	}
	if d, ok := NormalizeDate(out.Date, now); ok {
		draft.Date = d
	}
	if t, ok := NormalizeTime(out.Time); ok {
		draft.Time = t
	}
	return draft, nil
}

// ExtractProductQuery turns text into a stock filter.
func (s *Service) ExtractProductQuery(ctx context.Context, text string) (domain.StockFilter, error) {
	var out struct {
		Model   string  `json:"model"`
		Storage string  `json:"storage"`
		Color   string  `json:"color"`
		Budget  float64 `json:"budget"`
	}
	if err := s.completeJSON(ctx, productPrompt, []llm.Message{{Role: llm.RoleUser, Content: text}}, &out); err != nil {
		return domain.StockFilter{}, fmt.Errorf("nlu: extract product: %w", err)
	}
	storageCap := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(out.Storage), " ", ""))
	if storageCap != "" && !strings.HasSuffix(storageCap, "GB") && !strings.HasSuffix(storageCap, "TB") {
		storageCap += "GB"
	}
	return domain.StockFilter{
		Model:    strings.TrimSpace(out.Model),
		Storage:  storageCap,
		Color:    strings.TrimSpace(out.Color),
		MaxPrice: out.Budget,
	}, nil
}

// GenerateReply writes a free-form answer to text grounded on rc.
func (s *Service) GenerateReply(ctx context.Context, text string, rc ReplyContext) (string, error) {
	messages := append(historyMessages(rc.History, text), llm.Message{Role: llm.RoleUser, Content: text})
	reply, err := s.provider.Complete(ctx, llm.Request{
		System:    replySystemPrompt(rc),
		Messages:  messages,
		MaxTokens: 400,
	})
	if err != nil {
		return "", fmt.Errorf("nlu: generate reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// historyMessages converts the recent history to model turns, dropping the
// trailing copy of current (the dispatcher records it before calling us) and
// any leading assistant turns.
func historyMessages(history []storage.Message, current string) []llm.Message {
	if n := len(history); n > 0 && history[n-1].Role == storage.RoleCustomer && history[n-1].Content == current {
		history = history[:n-1]
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for len(history) > 0 && history[0].Role != storage.RoleCustomer {
		history = history[1:]
	}

	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == storage.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
