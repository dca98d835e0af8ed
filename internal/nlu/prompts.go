package nlu

import (
	"fmt"
	"strings"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// AssistantPersona is the base system prompt for customer-facing replies.
const AssistantPersona = `Sos el asistente de ventas de una tienda de celulares y te comunicás con clientes por chat.

## Estilo
- Respondé en español rioplatense, breve y cordial: es un chat, no un mail.
- Como máximo tres oraciones, sin listas largas ni formato Markdown.
- No inventes precios, stock, horarios ni políticas: usá solo los datos de abajo.
- Si no tenés el dato, decí que lo consultás con el equipo.

## Límites
- Nunca confirmes pagos, turnos ni reservas: eso lo hace el sistema.
- Nunca pidas contraseñas ni datos de tarjetas.`

func classifyPrompt() string {
	return fmt.Sprintf(`Clasificá el último mensaje de un cliente de una tienda de celulares.
Devolvé {"intent": "<label>"} usando exactamente una de estas etiquetas:
%s

Guía:
- purchase_intent: quiere comprar o ir a buscar un equipo ("tengo que buscar un iPhone 11").
- appointment_request: pide un turno o un horario para ir al local.
- payment_confirmation: dice que ya pagó o transfirió.
- payment_link_request: pide un link de pago.
- transfer_data_request: pide alias, CBU o datos para transferir.
- other: cualquier cosa que no encaje.`, strings.Join(Labels(), ", "))
}

func slotsPrompt(today string, weekday string) string {
	return fmt.Sprintf(`Extraé los datos de un turno para visitar la tienda a partir del último mensaje del cliente, usando la conversación previa como contexto.
Hoy es %s (%s).
Devolvé {"date": "", "time": "", "name": "", "product": ""}.
- date: YYYY-MM-DD si podés resolverla, o la expresión literal ("mañana", "el viernes").
- time: HH:MM en 24 horas solo si el cliente dijo la hora completa o aclaró mañana/tarde; si dijo una hora suelta, la expresión literal ("a las 4").
- name: nombre del cliente si lo dice.
- product: modelo de equipo que quiere ver o comprar.
Dejá vacío ("") todo lo que el mensaje no diga. No adivines.`, today, weekday)
}

const productPrompt = `Extraé qué equipo busca el cliente.
Devolvé {"model": "", "storage": "", "color": "", "budget": 0}.
- model: marca y modelo ("iPhone 11", "Galaxy S21").
- storage: capacidad ("128GB").
- budget: precio máximo en pesos si lo menciona, si no 0.
Dejá vacío todo lo que no se mencione.`

// replySystemPrompt bundles the persona with the business snapshot.
func replySystemPrompt(rc ReplyContext) string {
	var b strings.Builder
	b.WriteString(AssistantPersona)

	info := rc.Business
	b.WriteString("\n\n## Negocio\n")
	writeField(&b, "Nombre", info.Name)
	writeField(&b, "Horarios", info.Hours)
	writeField(&b, "Envíos", info.Shipping)
	writeField(&b, "Garantía", info.Warranty)
	writeField(&b, "Financiación", info.Financing)

	if len(rc.Stores) > 0 {
		b.WriteString("\n## Locales\n")
		for _, s := range rc.Stores {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.Name, s.Address, s.Hours)
		}
	}

	if len(rc.Products) > 0 {
		b.WriteString("\n## Equipos relevantes\n")
		for _, p := range rc.Products {
			fmt.Fprintf(&b, "- %s, %s, $%s, %d disponibles\n", p.Label(), p.Condition, domain.FormatPrice(p.Price), p.Quantity)
		}
	}

	if rc.CustomerName != "" {
		fmt.Fprintf(&b, "\nEl cliente se llama %s.\n", rc.CustomerName)
	}
	if rc.Instruction != "" {
		b.WriteString("\n## Tarea\n")
		b.WriteString(rc.Instruction)
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, value)
}

// ProductSummary is a one-line description of stock results for replies.
func ProductSummary(items []domain.StockItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s a $%s", it.Label(), domain.FormatPrice(it.Price)))
	}
	return strings.Join(parts, "; ")
}
