package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
	"github.com/ireland-samantha/shopkeeper-bot/internal/nlu"
	"github.com/ireland-samantha/shopkeeper-bot/internal/payment"
	"github.com/ireland-samantha/shopkeeper-bot/internal/sales"
	"github.com/ireland-samantha/shopkeeper-bot/internal/storage"
)

// maxListed caps how many stock items one reply lists.
const maxListed = 5

// turn is one message being handled.
type turn struct {
	Inbound
	conv   *storage.Conversation
	intent nlu.Intent
}

// handlerFunc produces the reply for a turn. Handlers never send.
type handlerFunc func(ctx context.Context, t turn) string

// topic is a conversational intent answered by the language model.
type topic struct {
	instruction string
	fallback    string
	// state, when set, is entered before replying.
	state storage.DialogueState
}

var topics = map[nlu.Intent]topic{
	nlu.IntentOther: {
		instruction: "Respondé de forma breve y útil. Si no queda claro qué necesita, preguntale.",
		fallback:    "Perdón, no te entendí bien. ¿Me contás qué estás buscando?",
	},
	nlu.IntentGreeting: {
		instruction: "Saludá y ofrecé ayuda con equipos, precios o turnos.",
		fallback:    "¡Hola! ¿En qué te puedo ayudar? Puedo mostrarte equipos, precios o agendarte un turno.",
	},
	nlu.IntentFarewell: {
		instruction: "Despedite con calidez.",
		fallback:    "¡Gracias por escribirnos! Cualquier cosa, acá estamos.",
	},
	nlu.IntentFinancingQuery: {
		instruction: "Explicá las opciones de financiación del negocio.",
		fallback:    "Tenemos opciones de financiación. ¿Con qué tarjeta querías pagar?",
	},
	nlu.IntentWarrantyQuery: {
		instruction: "Explicá la garantía del negocio.",
		fallback:    "Todos nuestros equipos tienen garantía. ¿Sobre qué equipo querés saber?",
	},
	nlu.IntentHoursQuery: {
		instruction: "Indicá los horarios y direcciones de los locales.",
		fallback:    "Te paso los horarios en un momento. ¿A qué local querías venir?",
	},
	nlu.IntentShippingQuery: {
		instruction: "Explicá las opciones de envío.",
		fallback:    "Hacemos envíos. ¿A qué zona sería?",
	},
	nlu.IntentRefundRequest: {
		instruction: "El cliente pide un reembolso. Pedí el número de compra y el motivo, sin prometer el reintegro.",
		fallback:    "Entiendo. ¿Me pasás el número de compra y el motivo así lo revisamos?",
		state:       storage.StateProcessingRefund,
	},
	nlu.IntentExchangeRequest: {
		instruction: "El cliente quiere cambiar un equipo. Pedí qué equipo tiene y por cuál lo quiere cambiar.",
		fallback:    "Dale. ¿Qué equipo tenés y por cuál lo querés cambiar?",
		state:       storage.StateProcessingExchange,
	},
	nlu.IntentDefectReport: {
		instruction: "El cliente reporta una falla. Pedí una descripción de la falla y desde cuándo ocurre, y ofrecé revisarlo en el local.",
		fallback:    "Lamento lo que pasó. ¿Me contás qué falla tiene y desde cuándo?",
		state:       storage.StateHandlingDefect,
	},
	nlu.IntentComplaint: {
		instruction: "El cliente tiene un reclamo. Pedí disculpas y preguntá los detalles.",
		fallback:    "Lamento mucho la situación. ¿Me contás qué pasó así lo resolvemos?",
		state:       storage.StateHandlingComplaint,
	},
	nlu.IntentComplaintDelay: {
		instruction: "El cliente se queja de una demora. Pedí disculpas y preguntá por qué pedido o turno es.",
		fallback:    "Perdón por la demora. ¿Me pasás los datos del pedido así lo reviso?",
		state:       storage.StateHandlingComplaint,
	},
	nlu.IntentComplaintService: {
		instruction: "El cliente se queja de la atención. Pedí disculpas y preguntá qué pasó.",
		fallback:    "Lamento que no te hayamos atendido bien. ¿Me contás qué pasó?",
		state:       storage.StateHandlingComplaint,
	},
	nlu.IntentTechnicalSupport: {
		instruction: "El cliente necesita ayuda técnica. Ofrecé pasos simples y, si no alcanza, un turno en el local.",
		fallback:    "Te ayudo. ¿Qué equipo tenés y qué está pasando?",
		state:       storage.StateTechnicalSupport,
	},
}

func (d *Dispatcher) handlerTable() [nlu.IntentCount]handlerFunc {
	var table [nlu.IntentCount]handlerFunc
	for intent := range topics {
		table[intent] = d.converse
	}
	table[nlu.IntentStockQuery] = d.stockQuery
	table[nlu.IntentPriceQuery] = d.stockQuery
	table[nlu.IntentPurchase] = d.purchase
	table[nlu.IntentPaymentLinkRequest] = d.paymentLink
	table[nlu.IntentTransferDataRequest] = d.transferData
	table[nlu.IntentPaymentConfirmation] = d.confirmPayment
	table[nlu.IntentAppointmentRequest] = d.book
	table[nlu.IntentAppointmentModify] = d.modifyAppointment
	table[nlu.IntentAppointmentCancel] = d.cancelAppointment
	table[nlu.IntentAppointmentQuery] = d.queryAppointment
	return table
}

// converse answers with the language model, falling back to a canned reply.
func (d *Dispatcher) converse(ctx context.Context, t turn) string {
	tp, ok := topics[t.intent]
	if !ok {
		tp = topics[nlu.IntentOther]
	}
	if tp.state != "" {
		d.deps.Store.SetState(ctx, t.CustomerID, tp.state)
	}

	lastResults, _ := storage.ContextValue[[]domain.StockItem](t.conv.Context, storage.KeyLastStockResults)
	reply, err := d.deps.NLU.GenerateReply(ctx, t.Text, nlu.ReplyContext{
		CustomerName: t.DisplayName,
		Business:     d.deps.Catalog.BusinessInfo(ctx),
		Stores:       d.deps.Catalog.ListStores(ctx),
		Products:     lastResults,
		History:      t.conv.Recent(storage.RecentWindow),
		Instruction:  tp.instruction,
	})
	if err != nil || reply == "" {
		d.logger.Warn("reply generation failed", "customer", t.CustomerID, "intent", t.intent.String(), "error", err)
		return tp.fallback
	}
	return reply
}

// searchStock lists in-stock items matching the message.
func (d *Dispatcher) searchStock(ctx context.Context, t turn) (domain.StockFilter, []domain.StockItem) {
	filter, err := d.deps.NLU.ExtractProductQuery(ctx, t.Text)
	if err != nil {
		d.logger.Warn("product extraction failed", "customer", t.CustomerID, "error", err)
		filter = domain.StockFilter{}
	}
	var available []domain.StockItem
	for _, it := range d.deps.Catalog.ListStock(ctx, filter) {
		if it.Available() {
			available = append(available, it)
		}
	}
	if len(available) > 0 {
		d.deps.Store.MergeContext(ctx, t.CustomerID, storage.Context{storage.KeyLastStockResults: available})
	}
	return filter, available
}

func (d *Dispatcher) stockQuery(ctx context.Context, t turn) string {
	filter, items := d.searchStock(ctx, t)
	if len(items) == 0 {
		if filter.Model != "" {
			return fmt.Sprintf("Ahora no tengo %s disponible. ¿Te muestro otras opciones?", filter.Model)
		}
		return "Ahora no tengo equipos que coincidan. ¿Buscás algún modelo en particular?"
	}
	return "Tengo estas opciones:\n" + listItems(items, maxListed) + "\n¿Alguno te interesa?"
}

func (d *Dispatcher) purchase(ctx context.Context, t turn) string {
	filter, items := d.searchStock(ctx, t)
	if len(items) == 0 {
		if filter.Model != "" {
			return fmt.Sprintf("Uy, ahora no tengo %s disponible. ¿Querés que te muestre otras opciones?", filter.Model)
		}
		return "¿Qué equipo estás buscando? Así te confirmo si lo tengo."
	}

	chosen := items[0]
	d.deps.Store.MergeContext(ctx, t.CustomerID, storage.Context{
		storage.KeyPendingPurchase: domain.PendingPurchase{
			ProductRef: chosen.ID,
			Name:       chosen.Label(),
			UnitPrice:  chosen.Price,
		},
	})
	d.deps.Store.SetState(ctx, t.CustomerID, storage.StateConfirmingPurchase)

	reply := fmt.Sprintf("¡Buenísimo! Tengo el %s a $%s.", chosen.Label(), domain.FormatPrice(chosen.Price))
	if len(items) > 1 {
		reply += "\nTambién tengo:\n" + listItems(items[1:], maxListed-1)
	}
	return reply + "\n¿Querés pasar a verlo por el local o preferís que te mande el link de pago?"
}

func (d *Dispatcher) pendingPurchase(t turn) (domain.PendingPurchase, bool) {
	return storage.ContextValue[domain.PendingPurchase](t.conv.Context, storage.KeyPendingPurchase)
}

func (d *Dispatcher) paymentLink(ctx context.Context, t turn) string {
	purchase, ok := d.pendingPurchase(t)
	if !ok {
		return "¿Qué equipo querés comprar? Así te genero el link de pago."
	}
	link, err := d.deps.Payments.Begin(ctx, t.CustomerID,
		domain.PaymentItem{Title: purchase.Name, Amount: purchase.UnitPrice, Quantity: 1},
		domain.Payer{ID: t.CustomerID, Name: t.DisplayName},
	)
	if err != nil {
		d.logger.Warn("payment link failed", "customer", t.CustomerID, "error", err)
		return "No pude generar el link de pago ahora. Si querés te paso los datos para transferir."
	}
	return fmt.Sprintf("Acá tenés el link para pagar el %s ($%s):\n%s\nAvisame cuando lo hayas pagado.",
		purchase.Name, domain.FormatPrice(purchase.UnitPrice), link)
}

func (d *Dispatcher) transferData(ctx context.Context, t turn) string {
	info := d.deps.Catalog.BusinessInfo(ctx)
	if info.TransferAlias == "" && info.TransferCBU == "" {
		return "Todavía no tengo cargados los datos para transferir. ¿Te mando el link de pago?"
	}

	var sb strings.Builder
	sb.WriteString("Estos son los datos para transferir:\n")
	if info.TransferAlias != "" {
		fmt.Fprintf(&sb, "Alias: %s\n", info.TransferAlias)
	}
	if info.TransferCBU != "" {
		fmt.Fprintf(&sb, "CBU: %s\n", info.TransferCBU)
	}
	if info.TransferHolder != "" {
		fmt.Fprintf(&sb, "Titular: %s\n", info.TransferHolder)
	}

	if purchase, ok := d.pendingPurchase(t); ok {
		d.deps.Payments.Expect(ctx, t.CustomerID, domain.PendingPayment{
			Amount:      purchase.UnitPrice,
			Description: purchase.Name,
			ProductRef:  purchase.ProductRef,
			Method:      domain.PaymentMethodTransfer,
		})
		fmt.Fprintf(&sb, "Monto: $%s\n", domain.FormatPrice(purchase.UnitPrice))
	}
	sb.WriteString("Avisame cuando hayas transferido.")
	return sb.String()
}

// confirmPayment reconciles the pending payment and, when it matches a
// pending purchase, records the sale.
func (d *Dispatcher) confirmPayment(ctx context.Context, t turn) string {
	res := d.deps.Payments.Confirm(ctx, t.CustomerID)
	if res.Outcome != payment.OutcomeConfirmed {
		return res.Message
	}

	purchase, ok := d.pendingPurchase(t)
	if !ok {
		return res.Message
	}
	sale := d.deps.Sales.ProcessSale(ctx, sales.SaleRequest{
		CustomerRef:   t.CustomerID,
		CustomerName:  t.DisplayName,
		ProductRef:    purchase.ProductRef,
		ProductName:   purchase.Name,
		Quantity:      1,
		UnitPrice:     purchase.UnitPrice,
		PaymentMethod: res.Pending.Method,
	})
	if !sale.OK {
		d.logger.Error("payment confirmed but sale failed", "customer", t.CustomerID, "payment", res.Payment.ID)
		return res.Message + "\n" + sale.Message + " Un asesor se va a comunicar con vos."
	}

	d.deps.Store.MergeContext(ctx, t.CustomerID, storage.Context{storage.KeyPendingPurchase: nil})
	d.deps.Store.SetState(ctx, t.CustomerID, storage.StateInitial)
	return res.Message + "\n" + sale.Message
}

func (d *Dispatcher) book(ctx context.Context, t turn) string {
	return d.deps.Booking.Handle(ctx, t.CustomerID, t.DisplayName, t.Text)
}

// modifyAppointment moves the customer's appointment. A date or time not
// mentioned is kept from the current appointment.
func (d *Dispatcher) modifyAppointment(ctx context.Context, t turn) string {
	draft, err := d.deps.NLU.ExtractAppointmentSlots(ctx, t.Text, t.conv.Messages)
	if err != nil {
		d.logger.Warn("appointment extraction failed", "customer", t.CustomerID, "error", err)
	}
	if draft.Date == "" && draft.Time == "" {
		return "¿Para qué día y horario querés pasar el turno?"
	}

	current := d.deps.Sales.QueryAppointment(ctx, t.CustomerID)
	if !current.OK {
		return current.Message
	}
	slot := current.Appointment.Slot
	if draft.Date != "" {
		slot.Date = draft.Date
	}
	if draft.Time != "" {
		slot.Time = draft.Time
	}
	return d.deps.Sales.ModifyAppointment(ctx, t.CustomerID, slot).Message
}

func (d *Dispatcher) cancelAppointment(ctx context.Context, t turn) string {
	res := d.deps.Sales.CancelAppointment(ctx, t.CustomerID)
	if res.OK && t.conv.State == storage.StateAppointmentConfirmed {
		d.deps.Store.SetState(ctx, t.CustomerID, storage.StateInitial)
	}
	return res.Message
}

func (d *Dispatcher) queryAppointment(ctx context.Context, t turn) string {
	return d.deps.Sales.QueryAppointment(ctx, t.CustomerID).Message
}
