// Package dispatch routes inbound customer messages to the handler for their
// intent and delivers exactly one reply per message.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/nlu"
	"github.com/ireland-samantha/shopkeeper-bot/internal/payment"
	"github.com/ireland-samantha/shopkeeper-bot/internal/sales"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// Defaults for Options fields left zero.
const (
	DefaultAdminPrefix  = "#"
	DefaultSendAttempts = 3
	DefaultSendBackoff  = 500 * time.Millisecond
)

// MsgSomethingWrong is sent when handling a message fails unexpectedly.
const MsgSomethingWrong = "Perdón, algo salió mal. ¿Me lo escribís de nuevo en un ratito?"

// Inbound is one customer message delivered by a transport.
type Inbound struct {
	CustomerID  string `json:"customerId"`
	Text        string `json:"text"`
	DisplayName string `json:"displayName"`
}

// Sender delivers a reply to a customer.
type Sender interface {
	Send(ctx context.Context, customerID, text string) error
}

// Understanding is the language-understanding collaborator.
type Understanding interface {
	ClassifyIntent(ctx context.Context, text string) (nlu.Intent, error)
	ExtractProductQuery(ctx context.Context, text string) (domain.StockFilter, error)
	ExtractAppointmentSlots(ctx context.Context, text string, history []storage.Message) (domain.AppointmentDraft, error)
	GenerateReply(ctx context.Context, text string, rc nlu.ReplyContext) (string, error)
}

// Catalog is the read side of the backend access layer.
type Catalog interface {
	ListStock(ctx context.Context, filter domain.StockFilter) []domain.StockItem
	ListStores(ctx context.Context) []domain.StoreInfo
	BusinessInfo(ctx context.Context) domain.BusinessInfo
	AppointmentsOn(ctx context.Context, date string) []domain.Appointment
	RecentClients(ctx context.Context, limit int) []domain.Client
	Stats(ctx context.Context, date string) domain.Stats
}

// Booking runs the appointment slot-filling dialogue.
type Booking interface {
	Handle(ctx context.Context, customerID, displayName, text string) string
}

// Sales performs purchases and appointment changes.
type Sales interface {
	ProcessSale(ctx context.Context, req sales.SaleRequest) sales.Result
	ModifyAppointment(ctx context.Context, customerRef string, slot domain.Slot) sales.Result
	CancelAppointment(ctx context.Context, customerRef string) sales.Result
	QueryAppointment(ctx context.Context, customerRef string) sales.Result
}

// Payments handles payment links, transfers and confirmations.
type Payments interface {
	Begin(ctx context.Context, customerID string, item domain.PaymentItem, payer domain.Payer) (string, error)
	Expect(ctx context.Context, customerID string, p domain.PendingPayment)
	Confirm(ctx context.Context, customerID string) payment.Result
}

// Deps are the collaborators a Dispatcher routes to.
type Deps struct {
	Store    storage.ConversationStore
	NLU      Understanding
	Catalog  Catalog
	Booking  Booking
	Sales    Sales
	Payments Payments
	Sender   Sender
}

// Options tune delivery and the admin surface.
type Options struct {
	// AdminPrefix marks administrative commands.
	AdminPrefix string
	// ReplyDelay is waited before each customer reply is sent.
	ReplyDelay time.Duration
	// SendAttempts is how many times a failed send is tried in total.
	SendAttempts int
	// SendBackoff is the wait before the second attempt; it grows linearly.
	SendBackoff time.Duration
	// Location is the business timezone for "today".
	Location *time.Location
}

// Dispatcher is the entry point for inbound messages.
type Dispatcher struct {
	deps     Deps
	opts     Options
	handlers [nlu.IntentCount]handlerFunc
	turns    *sequencer
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
	logger   *slog.Logger
}

// New creates a Dispatcher.
func New(deps Deps, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.AdminPrefix == "" {
		opts.AdminPrefix = DefaultAdminPrefix
	}
	if opts.SendAttempts <= 0 {
		opts.SendAttempts = DefaultSendAttempts
	}
	if opts.SendBackoff <= 0 {
		opts.SendBackoff = DefaultSendBackoff
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	d := &Dispatcher{
		deps:   deps,
		opts:   opts,
		turns:  newSequencer(),
		now:    time.Now,
		sleep:  sleepContext,
		logger: logger,
	}
	d.handlers = d.handlerTable()
	return d
}

// HandleInbound processes one message and sends its reply. The reply is
// returned for transports that answer synchronously.
func (d *Dispatcher) HandleInbound(ctx context.Context, in Inbound) string {
	return d.Accept(in)(ctx)
}

// Accept queues in behind earlier messages from the same customer and returns
// the function that handles it. Accept itself never blocks, so a transport
// calls it in arrival order and may run the returned function on its own
// goroutine: messages from one customer are still handled in the order they
// were accepted, different customers proceed concurrently. The returned
// function must be called exactly once.
func (d *Dispatcher) Accept(in Inbound) func(ctx context.Context) string {
	text := strings.TrimSpace(in.Text)
	if in.CustomerID == "" || text == "" {
		return func(context.Context) string { return "" }
	}
	in.Text = text

	if cmd, ok := strings.CutPrefix(text, d.opts.AdminPrefix); ok {
		return func(ctx context.Context) string {
			reply := d.admin(ctx, cmd)
			d.deliver(ctx, in.CustomerID, reply)
			return reply
		}
	}

	t := d.turns.Take(in.CustomerID)
	return func(ctx context.Context) string {
		t.Wait()
		defer t.Done()

		reply := d.respond(ctx, in)
		d.deps.Store.AppendMessage(ctx, in.CustomerID, storage.RoleAssistant, reply)

		d.sleep(ctx, d.opts.ReplyDelay)
		d.deliver(ctx, in.CustomerID, reply)
		return reply
	}
}

// respond records the message and runs exactly one handler for it.
func (d *Dispatcher) respond(ctx context.Context, in Inbound) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling message",
				"customer", in.CustomerID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply = MsgSomethingWrong
		}
	}()

	d.deps.Store.AppendMessage(ctx, in.CustomerID, storage.RoleCustomer, in.Text)
	conv := d.deps.Store.Get(ctx, in.CustomerID)

	if conv.State == storage.StateSchedulingAppointment {
		d.logger.Debug("continuing booking dialogue", "customer", in.CustomerID)
		return d.deps.Booking.Handle(ctx, in.CustomerID, in.DisplayName, in.Text)
	}

	intent, err := d.deps.NLU.ClassifyIntent(ctx, in.Text)
	if err != nil {
		d.logger.Warn("classification failed", "customer", in.CustomerID, "error", err)
		intent = nlu.IntentOther
	}
	d.logger.Info("handling message", "customer", in.CustomerID, "intent", intent.String(), "state", string(conv.State))

	return d.handlerFor(intent)(ctx, turn{Inbound: in, conv: conv, intent: intent})
}

func (d *Dispatcher) handlerFor(intent nlu.Intent) handlerFunc {
	if intent >= 0 && intent < nlu.IntentCount {
		if h := d.handlers[intent]; h != nil {
			return h
		}
	}
	return d.converse
}

// deliver sends text, retrying with a linearly growing backoff. Exhausted
// retries are only logged.
func (d *Dispatcher) deliver(ctx context.Context, customerID, text string) {
	if text == "" {
		return
	}
	var err error
	for attempt := 1; attempt <= d.opts.SendAttempts; attempt++ {
		if err = d.deps.Sender.Send(ctx, customerID, text); err == nil {
			return
		}
		d.logger.Warn("send failed", "customer", customerID, "attempt", attempt, "error", err)
		if attempt < d.opts.SendAttempts {
			d.sleep(ctx, time.Duration(attempt)*d.opts.SendBackoff)
		}
		if ctx.Err() != nil {
			break
		}
	}
	d.logger.Error("reply not delivered", "customer", customerID, "attempts", d.opts.SendAttempts, "error", err)
}

func (d *Dispatcher) today() string {
	return d.now().In(d.opts.Location).Format(time.DateOnly)
}

func sleepContext(ctx context.Context, dur time.Duration) {
	if dur <= 0 {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// listItems renders stock for a reply, one line per item.
func listItems(items []domain.StockItem, limit int) string {
	var sb strings.Builder
	for i, it := range items {
		if i == limit {
			fmt.Fprintf(&sb, "…y %d más.\n", len(items)-limit)
			break
		}
		fmt.Fprintf(&sb, "• %s: $%s\n", it.Label(), domain.FormatPrice(it.Price))
	}
	return strings.TrimRight(sb.String(), "\n")
}
