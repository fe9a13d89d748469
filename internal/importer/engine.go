package importer

import (
	"context"
	"fmt"
)

// EngineConfig carries deployment switches injected at construction.
type EngineConfig struct {
	// ForcedBranchID overrides the branch of every written sale when set.
	ForcedBranchID string
}

// Engine applies canonical entities idempotently, one transaction each.
type Engine struct {
	tx           TxRunner
	forcedBranch *string
}

// NewEngine builds an Engine.
func NewEngine(tx TxRunner, cfg EngineConfig) *Engine {
	e := &Engine{tx: tx}
	if cfg.ForcedBranchID != "" {
		branch := cfg.ForcedBranchID
		e.forcedBranch = &branch
	}
	return e
}

// UpsertSale writes the header and replaces its lines and payments atomically.
func (e *Engine) UpsertSale(ctx context.Context, sale Sale) (Outcome, error) {
	for i, p := range sale.Payments {
		if !p.Method.Valid() {
			return 0, fmt.Errorf("pagos[%d]: %w: %q", i, ErrUnknownPaymentMethod, string(p.Method))
		}
	}
	if e.forcedBranch != nil {
		sale.BranchID = e.forcedBranch
	}
	for i := range sale.Lines {
		sale.Lines[i].Number = i + 1
	}

	var inserted bool
	err := e.tx.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		inserted, err = repo.UpsertSaleHeader(ctx, sale)
		if err != nil {
			return fmt.Errorf("venta: %w", err)
		}
		if !sale.Cancelled {
			if err := repo.ApplyPendingCancellation(ctx, sale.ID); err != nil {
				return fmt.Errorf("cancelacion pendiente: %w", err)
			}
		}
		if err := repo.DeleteSaleLines(ctx, sale.ID); err != nil {
			return fmt.Errorf("lineas: %w", err)
		}
		if err := repo.InsertSaleLines(ctx, sale.ID, sale.Lines); err != nil {
			return fmt.Errorf("lineas: %w", err)
		}
		if err := repo.DeleteSalePayments(ctx, sale.ID); err != nil {
			return fmt.Errorf("pagos: %w", err)
		}
		if err := repo.InsertSalePayments(ctx, sale.ID, sale.Payments); err != nil {
			return fmt.Errorf("pagos: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcomeOf(inserted), nil
}

// UpsertCancellation accumulates the cancellation and, when the referenced
// sale is already stored, flags it. A missing sale is not an error.
func (e *Engine) UpsertCancellation(ctx context.Context, c Cancellation) (Outcome, error) {
	var inserted bool
	err := e.tx.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		inserted, err = repo.UpsertCancellation(ctx, c)
		if err != nil {
			return fmt.Errorf("cancelacion: %w", err)
		}
		if c.SaleID == nil {
			return nil
		}
		if _, err := repo.MarkSaleCancelled(ctx, c); err != nil {
			return fmt.Errorf("venta %d: %w", *c.SaleID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcomeOf(inserted), nil
}

// UpsertInventory sets the counted quantity of one position.
func (e *Engine) UpsertInventory(ctx context.Context, item InventoryItem) (Outcome, error) {
	var inserted bool
	err := e.tx.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		inserted, err = repo.UpsertInventory(ctx, item)
		return err
	})
	if err != nil {
		return 0, err
	}
	return outcomeOf(inserted), nil
}

func outcomeOf(inserted bool) Outcome {
	if inserted {
		return OutcomeInserted
	}
	return OutcomeUpdated
}
