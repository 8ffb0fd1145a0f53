package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/platform/apperr"
	"github.com/clinic/dashboard/internal/platform/linktoken"
)

// errNotPending aborts a resolving transaction whose conditional update
// matched nothing.
var errNotPending = errors.New("order is not pending")

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, apperr.Dependency(err, "could not load order")
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, status OrderStatus, limit, offset int) ([]*Order, int, error) {
	switch status {
	case "", OrderPending, OrderCompleted, OrderRejected:
	default:
		return nil, 0, apperr.Validation("unknown order status %q", status)
	}
	items, total, err := s.orders.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency(err, "could not list orders")
	}
	return items, total, nil
}

// ConfirmOrder marks a pending order delivered: stock is replenished and the
// cost is booked as an inventory expense. Confirming a confirmed order is a
// no-op reported through Order.AlreadyResolved.
func (s *Service) ConfirmOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.resolve(ctx, id, OrderCompleted, "")
}

// RejectOrder closes a pending order without touching stock quantity.
func (s *Service) RejectOrder(ctx context.Context, id uuid.UUID, reason string) (*Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a rejection reason is required")
	}
	return s.resolve(ctx, id, OrderRejected, reason)
}

func actionOf(to OrderStatus) string {
	if to == OrderCompleted {
		return "confirm"
	}
	return "reject"
}

func (s *Service) resolve(ctx context.Context, id uuid.UUID, to OrderStatus, reason string) (*Order, error) {
	action := actionOf(to)
	var (
		order *Order
		item  *StockItem
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Resolve(ctx, id, to, reason)
		if apperr.IsNoRows(err) {
			return errNotPending
		}
		if err != nil {
			return apperr.Dependency(err, "could not update order")
		}

		if to == OrderCompleted {
			item, err = s.stock.Restock(ctx, o.StockItemID, o.Quantity)
			if err != nil {
				return apperr.Dependency(err, "could not restock item")
			}
			amount := item.PricePerUnit.Mul(decimal.NewFromInt(int64(o.Quantity)))
			desc := fmt.Sprintf("Order of %d x %s", o.Quantity, item.Name)
			if err := s.expenses.RecordOrderExpense(ctx, o.ID, amount, desc, s.now()); err != nil {
				return err
			}
		} else {
			item, err = s.stock.SetStatus(ctx, o.StockItemID, StockRejected)
			if err != nil {
				return apperr.Dependency(err, "could not update stock item")
			}
		}
		order = o
		return nil
	})
	if errors.Is(err, errNotPending) {
		return s.settled(ctx, id, to)
	}
	if err != nil {
		s.metrics.OrderResolved(action, "error")
		return nil, err
	}

	s.metrics.OrderResolved(action, "resolved")
	s.notifyResolution(ctx, order, item)
	return order, nil
}

// settled explains why a conditional resolve matched nothing.
func (s *Service) settled(ctx context.Context, id uuid.UUID, to OrderStatus) (*Order, error) {
	action := actionOf(to)
	o, err := s.orders.GetByID(ctx, id)
	if apperr.IsNoRows(err) {
		s.metrics.OrderResolved(action, "not_found")
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		s.metrics.OrderResolved(action, "error")
		return nil, apperr.Dependency(err, "could not load order")
	}
	if o.Status == to {
		s.metrics.OrderResolved(action, "already_resolved")
		o.AlreadyResolved = true
		return o, nil
	}
	s.metrics.OrderResolved(action, "conflict")
	return nil, apperr.Conflict("order %s is already %s", id, o.Status)
}

func (s *Service) notifyResolution(ctx context.Context, o *Order, item *StockItem) {
	var title, msg string
	if o.Status == OrderCompleted {
		title = "Order confirmed"
		msg = fmt.Sprintf("%d x %s confirmed by the vendor. Stock is now %d.", o.Quantity, item.Name, item.Quantity)
	} else {
		title = "Order rejected"
		msg = fmt.Sprintf("%d x %s rejected by the vendor: %s", o.Quantity, item.Name, o.RejectionReason)
	}
	if _, err := s.notifier.Notify(ctx, o.RequestedBy, title, msg, notification.TypeOrder); err != nil {
		s.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("order resolution notification failed")
	}
}

// ConfirmOrders confirms each id independently.
func (s *Service) ConfirmOrders(ctx context.Context, ids []uuid.UUID) BatchResult {
	return s.resolveAll(ctx, ids, "confirmed", func(ctx context.Context, id uuid.UUID) (*Order, error) {
		return s.ConfirmOrder(ctx, id)
	})
}

// RejectOrders rejects each id independently with the same reason. A blank
// reason fails the whole call before any order is touched.
func (s *Service) RejectOrders(ctx context.Context, ids []uuid.UUID, reason string) (BatchResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return BatchResult{}, apperr.Validation("a rejection reason is required")
	}
	return s.resolveAll(ctx, ids, "rejected", func(ctx context.Context, id uuid.UUID) (*Order, error) {
		return s.RejectOrder(ctx, id, reason)
	}), nil
}

func (s *Service) resolveAll(ctx context.Context, ids []uuid.UUID, verb string, fn func(context.Context, uuid.UUID) (*Order, error)) BatchResult {
	ids = dedupe(ids)
	results := make([]ItemResult, len(ids))
	var g errgroup.Group
	g.SetLimit(reorderConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = ItemResult{ID: id}
			o, err := fn(ctx, id)
			if err != nil {
				results[i].Error = resultError(err)
				return nil
			}
			results[i].Success = true
			results[i].OrderID = &o.ID
			results[i].AlreadyResolved = o.AlreadyResolved
			return nil
		})
	}
	g.Wait()
	return tally(results, verb)
}

// ConfirmByToken confirms the orders named by an emailed confirm link.
func (s *Service) ConfirmByToken(ctx context.Context, token string) (BatchResult, error) {
	ids, err := s.links.Verify(token, linktoken.ActionConfirm)
	if err != nil {
		return BatchResult{}, linkError(err)
	}
	return s.ConfirmOrders(ctx, ids), nil
}

// RejectByToken rejects the orders named by an emailed reject link.
func (s *Service) RejectByToken(ctx context.Context, token, reason string) (BatchResult, error) {
	ids, err := s.links.Verify(token, linktoken.ActionReject)
	if err != nil {
		return BatchResult{}, linkError(err)
	}
	return s.RejectOrders(ctx, ids, reason)
}

// VerifyLink checks a link token without acting on it.
func (s *Service) VerifyLink(token string, action linktoken.Action) ([]uuid.UUID, error) {
	ids, err := s.links.Verify(token, action)
	if err != nil {
		return nil, linkError(err)
	}
	return ids, nil
}

// LinkedOrder is one order shown on a link page before the vendor acts.
type LinkedOrder struct {
	*Order
	ItemName string
}

// LinkOrders checks a link token and loads the orders it names without
// changing them. Orders that no longer exist are left out.
func (s *Service) LinkOrders(ctx context.Context, token string, action linktoken.Action) ([]LinkedOrder, error) {
	ids, err := s.VerifyLink(token, action)
	if err != nil {
		return nil, err
	}
	out := make([]LinkedOrder, 0, len(ids))
	for _, id := range ids {
		o, err := s.orders.GetByID(ctx, id)
		if apperr.IsNoRows(err) {
			continue
		}
		if err != nil {
			return nil, apperr.Dependency(err, "could not load order")
		}
		lo := LinkedOrder{Order: o, ItemName: o.StockItemID.String()}
		if item, err := s.stock.GetByID(ctx, o.StockItemID); err == nil {
			lo.ItemName = item.Name
		}
		out = append(out, lo)
	}
	return out, nil
}

func linkError(err error) error {
	if errors.Is(err, linktoken.ErrWrongAction) {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "this link is for a different action", Err: err}
	}
	return &apperr.Error{Kind: apperr.KindValidation, Message: "this link is invalid or has expired", Err: err}
}
