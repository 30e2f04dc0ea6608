package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultMaxAttempts bounds the fetch/decrement/update cycles per
// reconciliation before a conflict is surfaced to the caller.
const DefaultMaxAttempts = 3

// Reconciler decrements remote inventory counts after a confirmed
// purchase. Each attempt is a full optimistic-concurrency cycle: fetch
// the document with its version token, apply the decrements, write
// back conditioned on the token. A concurrent writer triggers a fresh
// cycle against the new revision; repeated conflicts give up rather
// than overwrite.
//
// The payment behind the order is already captured, so reconciliation
// failure is reported but never rolls anything back.
type Reconciler struct {
	store       DocumentStore
	maxAttempts int
}

func NewReconciler(store DocumentStore, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reconciler{store: store, maxAttempts: maxAttempts}
}

func (r *Reconciler) Reconcile(ctx context.Context, items []PurchasedItem) error {
	if len(items) == 0 {
		return errors.New("no items to reconcile")
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		doc, version, err := r.store.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch inventory document: %w", err)
		}

		changed := doc.ApplyPurchase(items)
		if changed == 0 {
			// nothing matched or counts were already zero
			log.Info().Int("items", len(items)).Msg("purchase matched no counted inventory")
			return nil
		}

		err = r.store.Update(ctx, doc, version)
		if err == nil {
			log.Info().Int("records_changed", changed).Msg("inventory reconciled")
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("update inventory document: %w", err)
		}

		lastErr = err
		log.Warn().Int("attempt", attempt).Msg("inventory document changed under us, retrying")
	}
	return fmt.Errorf("inventory reconciliation gave up after %d attempts: %w", r.maxAttempts, lastErr)
}
