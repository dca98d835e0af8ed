// Package sqlite implements the shop backend on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// Backend stores the shop in SQLite.
type Backend struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLocation sets the business time zone used for dates and stats.
func WithLocation(loc *time.Location) Option {
	return func(b *Backend) { b.loc = loc }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// Open creates or opens a SQLite database at the given path.
func Open(path string, opts ...Option) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	return newBackend(db, opts)
}

// OpenMemory creates an in-memory database (useful for testing).
func OpenMemory(opts ...Option) (*Backend, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newBackend(db, opts)
}

func newBackend(db *sql.DB, opts []Option) (*Backend, error) {
	b := &Backend{db: db, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return b, nil
}

// Close releases the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "sqlite"
}

const schema = `
CREATE TABLE IF NOT EXISTS stock (
    id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '',
    storage TEXT NOT NULL DEFAULT '',
    condition TEXT NOT NULL DEFAULT '',
    price REAL NOT NULL DEFAULT 0,
    quantity INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
    reserved INTEGER NOT NULL DEFAULT 0 CHECK(reserved >= 0)
);

CREATE TABLE IF NOT EXISTS stores (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    hours TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS business (
    id INTEGER PRIMARY KEY CHECK(id = 1),
    name TEXT NOT NULL DEFAULT '',
    hours TEXT NOT NULL DEFAULT '',
    shipping TEXT NOT NULL DEFAULT '',
    warranty TEXT NOT NULL DEFAULT '',
    financing TEXT NOT NULL DEFAULT '',
    transfer_alias TEXT NOT NULL DEFAULT '',
    transfer_cbu TEXT NOT NULL DEFAULT '',
    transfer_holder TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS appointments (
    id TEXT PRIMARY KEY,
    store TEXT NOT NULL,
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    customer_ref TEXT NOT NULL,
    customer_name TEXT NOT NULL DEFAULT '',
    product TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK(status IN ('CONFIRMED','CANCELLED','ATTENDED')),
    created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_slot
    ON appointments(store, date, time) WHERE status != 'CANCELLED';
CREATE INDEX IF NOT EXISTS idx_appointments_customer ON appointments(customer_ref, created_at);

CREATE TABLE IF NOT EXISTS sales (
    id TEXT PRIMARY KEY,
    customer_ref TEXT NOT NULL,
    total REAL NOT NULL,
    payment_method TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    day TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sales_day ON sales(day);

CREATE TABLE IF NOT EXISTS sale_items (
    sale_id TEXT NOT NULL REFERENCES sales(id),
    product_ref TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    quantity INTEGER NOT NULL,
    unit_price REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
    id TEXT PRIMARY KEY,
    phone TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    purchases INTEGER NOT NULL DEFAULT 0,
    last_product TEXT NOT NULL DEFAULT '',
    last_seen TEXT NOT NULL
);
`

func (b *Backend) timestamp() string {
	return b.now().In(b.loc).Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// ListStock returns items matching filter, in model order.
func (b *Backend) ListStock(ctx context.Context, filter domain.StockFilter) ([]domain.StockItem, error) {
	var (
		where []string
		args  []any
	)
	if filter.Model != "" {
		where = append(where, "model LIKE ?")
		args = append(args, "%"+strings.TrimSpace(filter.Model)+"%")
	}
	if filter.Storage != "" {
		where = append(where, "storage LIKE ?")
		args = append(args, "%"+strings.TrimSpace(filter.Storage)+"%")
	}
	if filter.Color != "" {
		where = append(where, "color LIKE ?")
		args = append(args, "%"+strings.TrimSpace(filter.Color)+"%")
	}
	if filter.MaxPrice > 0 {
		where = append(where, "price <= ?")
		args = append(args, filter.MaxPrice)
	}

	query := `SELECT id, model, color, storage, condition, price, quantity, reserved FROM stock`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY model, price"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ListStock: %w", err)
	}
	defer rows.Close()

	var items []domain.StockItem
	for rows.Next() {
		var it domain.StockItem
		if err := rows.Scan(&it.ID, &it.Model, &it.Color, &it.Storage, &it.Condition, &it.Price, &it.Quantity, &it.Reserved); err != nil {
			return nil, fmt.Errorf("sqlite: ListStock scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Reserve moves one unit from available to reserved.
func (b *Backend) Reserve(ctx context.Context, productRef string) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`UPDATE stock SET quantity = quantity - 1, reserved = reserved + 1 WHERE id = ? AND quantity > 0`,
		productRef)
	if err != nil {
		return false, fmt.Errorf("sqlite: Reserve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: Reserve: %w", err)
	}
	return n == 1, nil
}

// Release moves one unit back from reserved to available.
func (b *Backend) Release(ctx context.Context, productRef string) error {
	if _, err := b.db.ExecContext(ctx,
		`UPDATE stock SET quantity = quantity + 1, reserved = reserved - 1 WHERE id = ? AND reserved > 0`,
		productRef); err != nil {
		return fmt.Errorf("sqlite: Release: %w", err)
	}
	return nil
}

// ListStores returns the store directory.
func (b *Backend) ListStores(ctx context.Context) ([]domain.StoreInfo, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, name, address, hours FROM stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ListStores: %w", err)
	}
	defer rows.Close()

	var stores []domain.StoreInfo
	for rows.Next() {
		var s domain.StoreInfo
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Hours); err != nil {
			return nil, fmt.Errorf("sqlite: ListStores scan: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// BusinessInfo returns tenant metadata; the zero value when none is seeded.
func (b *Backend) BusinessInfo(ctx context.Context) (domain.BusinessInfo, error) {
	var info domain.BusinessInfo
	err := b.db.QueryRowContext(ctx, `
		SELECT name, hours, shipping, warranty, financing, transfer_alias, transfer_cbu, transfer_holder
		FROM business WHERE id = 1`).Scan(
		&info.Name, &info.Hours, &info.Shipping, &info.Warranty, &info.Financing,
		&info.TransferAlias, &info.TransferCBU, &info.TransferHolder)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BusinessInfo{}, nil
	}
	if err != nil {
		return domain.BusinessInfo{}, fmt.Errorf("sqlite: BusinessInfo: %w", err)
	}
	return info, nil
}

// CreateAppointment inserts a confirmed appointment. The partial unique index
// rejects a second active booking of the same slot.
func (b *Backend) CreateAppointment(ctx context.Context, appt domain.Appointment) (bool, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = domain.AppointmentConfirmed
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO appointments (id, store, date, time, customer_ref, customer_name, product, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.Slot.Store, appt.Slot.Date, appt.Slot.Time, appt.CustomerRef,
		appt.CustomerName, appt.Product, string(appt.Status), b.timestamp())
	if err != nil {
		if isConstraint(err) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: CreateAppointment: %w", err)
	}
	return true, nil
}

// CheckAvailability reports whether no active appointment holds slot.
func (b *Backend) CheckAvailability(ctx context.Context, slot domain.Slot) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE store = ? AND date = ? AND time = ? AND status != 'CANCELLED'`,
		slot.Store, slot.Date, slot.Time).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: CheckAvailability: %w", err)
	}
	return n == 0, nil
}

const appointmentColumns = `id, store, date, time, customer_ref, customer_name, product, status, created_at`

func scanAppointment(row interface{ Scan(...any) error }) (domain.Appointment, error) {
	var (
		a       domain.Appointment
		status  string
		created string
	)
	err := row.Scan(&a.ID, &a.Slot.Store, &a.Slot.Date, &a.Slot.Time, &a.CustomerRef,
		&a.CustomerName, &a.Product, &status, &created)
	a.Status = domain.AppointmentStatus(status)
	a.CreatedAt = parseTime(created)
	return a, err
}

// FindAppointment returns the customer's earliest-created active appointment.
func (b *Backend) FindAppointment(ctx context.Context, customerRef string) (*domain.Appointment, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE customer_ref = ? AND status != 'CANCELLED'
		ORDER BY created_at, rowid LIMIT 1`, customerRef)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindAppointment: %w", err)
	}
	return &a, nil
}

// RescheduleAppointment moves an active appointment to slot.
func (b *Backend) RescheduleAppointment(ctx context.Context, id string, slot domain.Slot) (bool, error) {
	res, err := b.db.ExecContext(ctx, `
		UPDATE appointments SET store = ?, date = ?, time = ?
		WHERE id = ? AND status != 'CANCELLED'`,
		slot.Store, slot.Date, slot.Time, id)
	if err != nil {
		if isConstraint(err) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: RescheduleAppointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: RescheduleAppointment: %w", err)
	}
	return n == 1, nil
}

// CancelAppointment cancels the customer's first active appointment.
func (b *Backend) CancelAppointment(ctx context.Context, customerRef string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `
		UPDATE appointments SET status = 'CANCELLED'
		WHERE id = (
			SELECT id FROM appointments
			WHERE customer_ref = ? AND status != 'CANCELLED'
			ORDER BY created_at, rowid LIMIT 1
		)`, customerRef)
	if err != nil {
		return false, fmt.Errorf("sqlite: CancelAppointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: CancelAppointment: %w", err)
	}
	return n == 1, nil
}

// AppointmentsOn lists the active appointments of a date by time.
func (b *Backend) AppointmentsOn(ctx context.Context, date string) ([]domain.Appointment, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE date = ? AND status != 'CANCELLED' ORDER BY time, store`, date)
	if err != nil {
		return nil, fmt.Errorf("sqlite: AppointmentsOn: %w", err)
	}
	defer rows.Close()

	var appts []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: AppointmentsOn scan: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// CreateSale records a sale and its items in one transaction.
func (b *Backend) CreateSale(ctx context.Context, in domain.SaleInput) (*domain.Sale, error) {
	now := b.now().In(b.loc)
	sale := &domain.Sale{
		ID:            uuid.NewString(),
		CustomerRef:   in.CustomerRef,
		Items:         in.Items,
		Total:         in.Total,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     now,
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: CreateSale: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_ref, total, payment_method, status, created_at, day)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.CustomerRef, sale.Total, sale.PaymentMethod, sale.Status,
		now.Format(time.RFC3339), now.Format(time.DateOnly)); err != nil {
		return nil, fmt.Errorf("sqlite: CreateSale: %w", err)
	}
	for _, item := range in.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_ref, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			sale.ID, item.ProductRef, item.Name, item.Quantity, item.UnitPrice); err != nil {
			return nil, fmt.Errorf("sqlite: CreateSale item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: CreateSale commit: %w", err)
	}
	return sale, nil
}

// FindOrCreateClient looks a client up by phone, creating it if needed, and
// refreshes its last-seen time and name.
func (b *Backend) FindOrCreateClient(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	ts := b.timestamp()
	if _, err := b.db.ExecContext(ctx, `
		INSERT INTO clients (id, phone, name, purchases, last_seen) VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(phone) DO UPDATE SET
			last_seen = excluded.last_seen,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE clients.name END`,
		uuid.NewString(), in.Phone, in.Name, ts); err != nil {
		return nil, fmt.Errorf("sqlite: FindOrCreateClient: %w", err)
	}

	var (
		c        domain.Client
		lastSeen string
	)
	err := b.db.QueryRowContext(ctx, `
		SELECT id, phone, name, purchases, last_product, last_seen FROM clients WHERE phone = ?`,
		in.Phone).Scan(&c.ID, &c.Phone, &c.Name, &c.Purchases, &c.LastProduct, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindOrCreateClient read: %w", err)
	}
	c.LastSeen = parseTime(lastSeen)
	return &c, nil
}

// RecordPurchase increments the purchase counter and remembers the product.
func (b *Backend) RecordPurchase(ctx context.Context, clientID, product string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE clients SET purchases = purchases + 1, last_product = ?, last_seen = ? WHERE id = ?`,
		product, b.timestamp(), clientID)
	if err != nil {
		return fmt.Errorf("sqlite: RecordPurchase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: RecordPurchase: client %q: %w", clientID, domain.ErrNotFound)
	}
	return nil
}

// RecentClients lists clients by last activity.
func (b *Backend) RecentClients(ctx context.Context, limit int) ([]domain.Client, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, phone, name, purchases, last_product, last_seen
		FROM clients ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: RecentClients: %w", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var (
			c        domain.Client
			lastSeen string
		)
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.Purchases, &c.LastProduct, &lastSeen); err != nil {
			return nil, fmt.Errorf("sqlite: RecentClients scan: %w", err)
		}
		c.LastSeen = parseTime(lastSeen)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Stats summarizes sales, appointments, stock and clients for date.
func (b *Backend) Stats(ctx context.Context, date string) (domain.Stats, error) {
	stats := domain.Stats{Date: date}
	err := b.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sales WHERE day = ?),
			(SELECT COALESCE(SUM(total), 0) FROM sales WHERE day = ?),
			(SELECT COUNT(*) FROM appointments WHERE date = ? AND status != 'CANCELLED'),
			(SELECT COALESCE(SUM(quantity), 0) FROM stock),
			(SELECT COUNT(*) FROM clients)`,
		date, date, date).Scan(&stats.SalesCount, &stats.Revenue, &stats.Appointments, &stats.StockUnits, &stats.Clients)
	if err != nil {
		return stats, fmt.Errorf("sqlite: Stats: %w", err)
	}
	return stats, nil
}
