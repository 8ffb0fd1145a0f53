package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/internal/platform/mailer"
)

// reorderConcurrency bounds the per-item transactions of one batch.
const reorderConcurrency = 4

// ReorderGate evaluates ids against the current inventory without changing
// anything.
func (s *Service) ReorderGate(ctx context.Context, ids []uuid.UUID) (ReorderGate, error) {
	items, err := s.stock.ListAll(ctx)
	if err != nil {
		return ReorderGate{}, apperr.Dependency(err, "could not load stock items")
	}
	return EvaluateReorder(dedupe(ids), items), nil
}

// Reorder places one PENDING order per selected item, then mails the vendor a
// single purchase order covering every order that was created. Items fail
// independently; the batch itself only fails when the gate blocks it.
func (s *Service) Reorder(ctx context.Context, actor auth.Actor, ids []uuid.UUID) (*ReorderResult, error) {
	ids = dedupe(ids)
	items, err := s.stock.ListAll(ctx)
	if err != nil {
		return nil, apperr.Dependency(err, "could not load stock items")
	}
	gate := EvaluateReorder(ids, items)
	if !gate.Enabled() {
		return nil, &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: blockedMessages[gate.Decision],
			Err:     &ReorderBlockedError{Gate: gate},
		}
	}

	byID := make(map[uuid.UUID]*StockItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	results := make([]ItemResult, len(ids))
	created := make([]*Order, len(ids))
	var g errgroup.Group
	g.SetLimit(reorderConcurrency)
	for i, id := range ids {
		item := byID[id]
		g.Go(func() error {
			results[i] = ItemResult{ID: id}
			o, err := s.reorderItem(ctx, actor, item)
			if err != nil {
				results[i].Error = resultError(err)
				if apperr.Is(err, apperr.KindConflict) {
					s.metrics.ReorderItem("conflict")
				} else {
					s.metrics.ReorderItem("error")
					s.logger.Error().Err(err).Str("stock_item_id", id.String()).Msg("reorder failed")
				}
				return nil
			}
			results[i].Success = true
			results[i].OrderID = &o.ID
			created[i] = o
			s.metrics.ReorderItem("created")
			return nil
		})
	}
	g.Wait()

	res := &ReorderResult{VendorID: *gate.VendorID}
	res.BatchResult = tally(results, "reordered")

	var orders []*Order
	for _, o := range created {
		if o != nil {
			orders = append(orders, o)
		}
	}

	vendorName := "the vendor"
	if len(orders) > 0 {
		vendor, err := s.sendPurchaseOrder(ctx, *gate.VendorID, orders, byID)
		if vendor != nil {
			vendorName = vendor.Name
		}
		if err != nil {
			s.metrics.MailFailed(mailer.TemplatePurchaseOrder)
			s.logger.Error().Err(err).Str("vendor_id", gate.VendorID.String()).
				Int("orders", len(orders)).Msg("purchase order email failed")
		} else {
			res.EmailSent = true
		}
	}

	msg := fmt.Sprintf("Reordered %d of %d items from %s.", res.Succeeded, res.Total, vendorName)
	if len(orders) > 0 && !res.EmailSent {
		msg += " The purchase order email could not be sent."
	}
	if _, err := s.notifier.Notify(ctx, actor.UserID, "Reorder placed", msg, notification.TypeOrder); err != nil {
		s.logger.Error().Err(err).Msg("reorder notification failed")
	}
	return res, nil
}

func (s *Service) reorderItem(ctx context.Context, actor auth.Actor, item *StockItem) (*Order, error) {
	var order *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		marked, err := s.stock.MarkPending(ctx, item.ID, item.VendorID)
		if apperr.IsNoRows(err) {
			return s.reorderConflict(ctx, item)
		}
		if err != nil {
			return apperr.Dependency(err, "could not update %s", item.Name)
		}
		o := &Order{
			StockItemID: marked.ID,
			VendorID:    marked.VendorID,
			Quantity:    marked.ReorderQuantity,
			Status:      OrderPending,
			RequestedBy: actor.UserID,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			if apperr.IsUniqueViolation(err) {
				return apperr.Conflict("%s already has a pending order", item.Name)
			}
			return apperr.Dependency(err, "could not create order for %s", item.Name)
		}
		order = o
		return nil
	})
	return order, err
}

// reorderConflict explains why an item that passed the gate could not be
// marked PENDING: it changed after the gate read it.
func (s *Service) reorderConflict(ctx context.Context, gated *StockItem) error {
	current, err := s.stock.GetByID(ctx, gated.ID)
	switch {
	case apperr.IsNoRows(err):
		return apperr.Conflict("%s no longer exists", gated.Name)
	case err != nil:
		return apperr.Dependency(err, "could not reload %s", gated.Name)
	case current.VendorID != gated.VendorID:
		return apperr.Conflict("%s is now supplied by a different vendor", gated.Name)
	case !IsLowStock(current):
		return apperr.Conflict("%s is no longer low on stock", gated.Name)
	default:
		return apperr.Conflict("%s already has a pending order", gated.Name)
	}
}

func (s *Service) sendPurchaseOrder(ctx context.Context, vendorID uuid.UUID, orders []*Order, items map[uuid.UUID]*StockItem) (*Vendor, error) {
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("load vendor: %w", err)
	}

	ids := make([]uuid.UUID, len(orders))
	idStrs := make([]string, len(orders))
	var lines strings.Builder
	total := decimal.Zero
	for i, o := range orders {
		ids[i] = o.ID
		idStrs[i] = o.ID.String()
		item := items[o.StockItemID]
		subtotal := item.PricePerUnit.Mul(decimal.NewFromInt(int64(o.Quantity)))
		total = total.Add(subtotal)
		fmt.Fprintf(&lines, "- %s: %d x %s = %s\n", item.Name, o.Quantity, item.PricePerUnit.StringFixed(2), subtotal.StringFixed(2))
	}

	confirm, reject, expires, err := s.links.Links(s.baseURL, ids)
	if err != nil {
		return vendor, fmt.Errorf("sign order links: %w", err)
	}
	data := map[string]string{
		"practice":     s.practice,
		"vendor_name":  vendor.Name,
		"item_count":   strconv.Itoa(len(orders)),
		"lines":        strings.TrimSuffix(lines.String(), "\n"),
		"total":        total.StringFixed(2),
		"confirm_link": confirm,
		"reject_link":  reject,
		"expires":      expires.UTC().Format(time.RFC1123),
	}
	metadata := map[string]string{
		"vendor_id": vendor.ID.String(),
		"order_ids": strings.Join(idStrs, ","),
	}
	return vendor, s.mailer.SendTemplate(ctx, vendor.Email, mailer.TemplatePurchaseOrder, data, metadata)
}

// tally fills the counters and summary of a batch, e.g. "confirmed 3 of 5".
func tally(results []ItemResult, verb string) BatchResult {
	b := BatchResult{Total: len(results), Items: results}
	for _, r := range results {
		if r.Success {
			b.Succeeded++
		} else {
			b.Failed++
		}
	}
	b.Summary = fmt.Sprintf("%s %d of %d", verb, b.Succeeded, b.Total)
	return b
}

// resultError is the client-safe text of a per-item failure.
func resultError(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}
