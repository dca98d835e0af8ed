package dispatch

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// recentClientsShown is how many clients the clients report lists.
const recentClientsShown = 10

const adminHelp = `Comandos:
  stock             resumen de stock
  turnos [fecha]    turnos del día (YYYY-MM-DD, por defecto hoy)
  stats [fecha]     estadísticas del día
  clientes          últimos clientes
  resumen           todo lo anterior para hoy
  help              esta ayuda`

// admin runs a read-only report command. It never touches conversation
// state.
func (d *Dispatcher) admin(ctx context.Context, line string) string {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return adminHelp
	}
	date := d.today()
	if len(fields) > 1 {
		date = fields[1]
	}

	d.logger.Info("admin command", "command", fields[0])
	switch fields[0] {
	case "stock":
		return stockReport(d.deps.Catalog.ListStock(ctx, domain.StockFilter{}))
	case "turnos", "appointments":
		return appointmentsReport(date, d.deps.Catalog.AppointmentsOn(ctx, date))
	case "stats":
		return statsReport(d.deps.Catalog.Stats(ctx, date))
	case "clientes", "clients":
		return clientsReport(d.deps.Catalog.RecentClients(ctx, recentClientsShown))
	case "resumen", "summary":
		return d.summary(ctx, date)
	case "help", "ayuda":
		return adminHelp
	default:
		return fmt.Sprintf("Comando desconocido %q.\n%s", fields[0], adminHelp)
	}
}

// summary gathers every report concurrently.
func (d *Dispatcher) summary(ctx context.Context, date string) string {
	var sections [4]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sections[0] = statsReport(d.deps.Catalog.Stats(gctx, date))
		return nil
	})
	g.Go(func() error {
		sections[1] = appointmentsReport(date, d.deps.Catalog.AppointmentsOn(gctx, date))
		return nil
	})
	g.Go(func() error {
		sections[2] = stockReport(d.deps.Catalog.ListStock(gctx, domain.StockFilter{}))
		return nil
	})
	g.Go(func() error {
		sections[3] = clientsReport(d.deps.Catalog.RecentClients(gctx, recentClientsShown))
		return nil
	})
	_ = g.Wait()
	return strings.Join(sections[:], "\n\n")
}

func stockReport(items []domain.StockItem) string {
	if len(items) == 0 {
		return "Stock: sin datos."
	}
	var sb strings.Builder
	units := 0
	for _, it := range items {
		units += it.Quantity
	}
	fmt.Fprintf(&sb, "Stock: %d modelos, %d unidades", len(items), units)
	for _, it := range items {
		fmt.Fprintf(&sb, "\n• %s: %d disp., %d reserv. ($%s)", it.Label(), it.Quantity, it.Reserved, domain.FormatPrice(it.Price))
	}
	return sb.String()
}

func appointmentsReport(date string, appts []domain.Appointment) string {
	if len(appts) == 0 {
		return fmt.Sprintf("Turnos %s: ninguno.", date)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Turnos %s: %d", date, len(appts))
	for _, a := range appts {
		who := a.CustomerName
		if who == "" {
			who = a.CustomerRef
		}
		fmt.Fprintf(&sb, "\n• %s %s", a.Slot.Time, who)
		if a.Product != "" {
			fmt.Fprintf(&sb, " (%s)", a.Product)
		}
	}
	return sb.String()
}

func statsReport(s domain.Stats) string {
	return fmt.Sprintf("Estadísticas %s\nVentas: %d ($%s)\nTurnos: %d\nUnidades en stock: %d\nClientes: %d",
		s.Date, s.SalesCount, domain.FormatPrice(s.Revenue), s.Appointments, s.StockUnits, s.Clients)
}

func clientsReport(clients []domain.Client) string {
	if len(clients) == 0 {
		return "Clientes: ninguno todavía."
	}
	var sb strings.Builder
	sb.WriteString("Últimos clientes:")
	for _, c := range clients {
		name := c.Name
		if name == "" {
			name = c.Phone
		}
		fmt.Fprintf(&sb, "\n• %s: %d compras", name, c.Purchases)
		if c.LastProduct != "" {
			fmt.Fprintf(&sb, ", última %s", c.LastProduct)
		}
	}
	return sb.String()
}
