package payment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// Defaults for matching a claimed payment.
const (
	DefaultTolerance = 10.0
	DefaultLookback  = 60 * time.Minute
)

// Outcome classifies a confirmation attempt.
type Outcome int

const (
	// OutcomeNoPending means there is nothing to confirm; ask for the amount.
	OutcomeNoPending Outcome = iota
	// OutcomeConfirmed means a gateway transaction matched.
	OutcomeConfirmed
	// OutcomeNotFound means no transaction matched yet; the pending payment
	// is kept for a later attempt.
	OutcomeNotFound
	// OutcomeUnavailable means the gateway could not be queried.
	OutcomeUnavailable
)

// Result is what Confirm found, with the reply to send.
type Result struct {
	Outcome Outcome
	Pending *domain.PendingPayment
	Payment *domain.Payment
	Message string
}

// Reconciler matches a customer's pending payment against the gateway feed.
// Matched transaction IDs are remembered for twice the lookback window so
// one transaction never confirms two pending payments.
type Reconciler struct {
	gateway   Gateway
	store     storage.ConversationStore
	tolerance float64
	lookback  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	claimed map[string]time.Time
}

// NewReconciler creates a Reconciler. Non-positive lookback and negative
// tolerance fall back to the defaults.
func NewReconciler(gateway Gateway, store storage.ConversationStore, tolerance float64, lookback time.Duration, logger *slog.Logger) *Reconciler {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Reconciler{
		gateway:   gateway,
		store:     store,
		tolerance: tolerance,
		lookback:  lookback,
		now:       time.Now,
		logger:    logger,
		claimed:   make(map[string]time.Time),
	}
}

// Pending returns the customer's pending payment, if any.
func (r *Reconciler) Pending(ctx context.Context, customerID string) (domain.PendingPayment, bool) {
	conv := r.store.Get(ctx, customerID)
	return storage.ContextValue[domain.PendingPayment](conv.Context, storage.KeyPendingPayment)
}

// Begin records a pending payment for item and returns a checkout link. The
// pending payment is only stored once the link exists.
func (r *Reconciler) Begin(ctx context.Context, customerID string, item domain.PaymentItem, payer domain.Payer) (string, error) {
	if item.Reference == "" {
		item.Reference = uuid.NewString()
	}
	link, err := r.gateway.CreatePaymentLink(ctx, item, payer)
	if err != nil {
		return "", err
	}
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	r.Expect(ctx, customerID, domain.PendingPayment{
		Reference:   item.Reference,
		Amount:      item.Amount * float64(qty),
		Description: item.Title,
		Method:      domain.PaymentMethodLink,
	})
	return link, nil
}

// Expect stores p as the customer's pending payment, e.g. before a bank
// transfer.
func (r *Reconciler) Expect(ctx context.Context, customerID string, p domain.PendingPayment) {
	if p.Reference == "" {
		p.Reference = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	r.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingPayment: p})
}

// Confirm looks for the most recent approved gateway transaction within the
// lookback window whose amount is within tolerance of the pending amount.
// It never returns an error; gateway failures become OutcomeUnavailable.
func (r *Reconciler) Confirm(ctx context.Context, customerID string) Result {
	pending, ok := r.Pending(ctx, customerID)
	if !ok {
		return Result{
			Outcome: OutcomeNoPending,
			Message: "¿Por qué monto hiciste el pago? Así lo busco.",
		}
	}

	payments, err := r.gateway.ListRecentPayments(ctx, r.lookback)
	if err != nil {
		r.logger.Warn("payment gateway unavailable", "customer", customerID, "error", err)
		return Result{
			Outcome: OutcomeUnavailable,
			Pending: &pending,
			Message: "Ahora no puedo verificar el pago. Lo revisamos a mano y te confirmamos a la brevedad.",
		}
	}

	match, found := r.claim(payments, pending.Amount)
	if !found {
		r.logger.Info("no matching payment yet", "customer", customerID, "amount", pending.Amount, "candidates", len(payments))
		return Result{
			Outcome: OutcomeNotFound,
			Pending: &pending,
			Message: fmt.Sprintf("Todavía no veo el pago de $%s. Suele tardar unos minutos; avisame y lo vuelvo a buscar.", domain.FormatPrice(pending.Amount)),
		}
	}

	r.store.MergeContext(ctx, customerID, storage.Context{storage.KeyPendingPayment: nil})
	r.logger.Info("payment confirmed", "customer", customerID, "payment", match.ID, "amount", match.Amount)
	return Result{
		Outcome: OutcomeConfirmed,
		Pending: &pending,
		Payment: &match,
		Message: fmt.Sprintf("¡Listo! Recibimos tu pago de $%s. ¡Gracias!", domain.FormatPrice(match.Amount)),
	}
}

// claim selects and marks the matching transaction under the ledger lock.
func (r *Reconciler) claim(payments []domain.Payment, amount float64) (domain.Payment, bool) {
	now := r.now()
	cutoff := now.Add(-r.lookback)

	sorted := append([]domain.Payment(nil), payments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, at := range r.claimed {
		if now.Sub(at) > 2*r.lookback {
			delete(r.claimed, id)
		}
	}

	for _, p := range sorted {
		if p.Status != domain.PaymentStatusApproved {
			continue
		}
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if math.Abs(p.Amount-amount) > r.tolerance {
			continue
		}
		if _, taken := r.claimed[p.ID]; taken && p.ID != "" {
			continue
		}
		if p.ID != "" {
			r.claimed[p.ID] = now
		}
		return p, true
	}
	return domain.Payment{}, false
}
