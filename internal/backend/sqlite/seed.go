package sqlite

import (
	"context"

	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/seed"
)

// Apply upserts one seed document in a single transaction.
func (b *Backend) Apply(ctx context.Context, f seed.File) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if info := f.Business; info != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO business (id, name, hours, shipping, warranty, financing, transfer_alias, transfer_cbu, transfer_holder)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, hours = excluded.hours, shipping = excluded.shipping,
				warranty = excluded.warranty, financing = excluded.financing,
				transfer_alias = excluded.transfer_alias, transfer_cbu = excluded.transfer_cbu,
				transfer_holder = excluded.transfer_holder`,
			info.Name, info.Hours, info.Shipping, info.Warranty, info.Financing,
			info.TransferAlias, info.TransferCBU, info.TransferHolder); err != nil {
			return err
		}
	}

	for _, s := range f.Stores {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stores (id, name, address, hours) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, address = excluded.address, hours = excluded.hours`,
			s.ID, s.Name, s.Address, s.Hours); err != nil {
			return err
		}
	}

	for _, it := range f.Stock {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock (id, model, color, storage, condition, price, quantity, reserved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				model = excluded.model, color = excluded.color, storage = excluded.storage,
				condition = excluded.condition, price = excluded.price,
				quantity = excluded.quantity, reserved = excluded.reserved`,
			it.ID, it.Model, it.Color, it.Storage, it.Condition, it.Price, it.Quantity, it.Reserved); err != nil {
			return err
		}
	}

	return tx.Commit()
}
