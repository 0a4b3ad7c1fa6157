package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
)

// Client は注文関連のバックエンドAPIのインターフェース。
type Client interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	PlaceOrder(ctx context.Context, lines []cart.Line) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID model.ID) (*model.Order, error)
	Checkout(ctx context.Context, orderID, paymentMethodID model.ID) (*model.Order, error)
}

// PlacedRecorder は注文作成のメトリクス記録インターフェース。
type PlacedRecorder interface {
	RecordOrderPlaced()
}

// Service は注文操作のビジネスロジックを提供する。
type Service struct {
	client   Client
	carts    cart.Store
	tracker  *Tracker
	recorder PlacedRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(client Client, carts cart.Store, tracker *Tracker, recorder PlacedRecorder) *Service {
	return &Service{
		client:   client,
		carts:    carts,
		tracker:  tracker,
		recorder: recorder,
	}
}

// PlaceFromCart はセッションのカート全体を1件の注文として送信する。
// 成功した場合のみカートを空にする。失敗時はカートを変更しない。
func (s *Service) PlaceFromCart(ctx context.Context, sessionID string) (*model.Order, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, model.NewEmptyCartError()
	}

	placed, err := s.client.PlaceOrder(ctx, c.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	if err := s.carts.Delete(ctx, sessionID); err != nil {
		// 注文は作成済みのため失敗扱いにはしない
		slog.Error("failed to clear cart after order",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	if s.recorder != nil {
		s.recorder.RecordOrderPlaced()
	}

	attrs := []any{slog.String("session_id", sessionID), slog.Int("lines", c.Len())}
	if placed != nil {
		attrs = append(attrs, slog.String("order_id", placed.ID.String()))
	}
	slog.Info("order placed", attrs...)
	return placed, nil
}

// List は注文一覧を取得し、確認待ちの状態を反映したビューを返す。
func (s *Service) List(ctx context.Context, sessionID string) ([]View, []model.ID, error) {
	orders, err := s.client.ListOrders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list orders: %w", err)
	}
	views, unreflected := s.tracker.Reconcile(sessionID, orders)
	return views, unreflected, nil
}

// Cancel は注文をキャンセルする。MEMBERロールは実行できない。
func (s *Service) Cancel(ctx context.Context, role model.Role, orderID model.ID) error {
	if role == model.RoleMember {
		return model.NewActionNotAllowedError()
	}
	if _, err := s.client.CancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	slog.Info("order cancelled", slog.String("order_id", orderID.String()))
	return nil
}

// Checkout は注文を支払い方法で確定する。
// 成功した場合、サーバーが状態を反映するまで確認待ちとして扱う。
func (s *Service) Checkout(ctx context.Context, sessionID string, role model.Role, orderID, paymentMethodID model.ID) error {
	if role == model.RoleMember {
		return model.NewActionNotAllowedError()
	}
	if paymentMethodID.IsZero() {
		return model.NewValidationError("Please select a payment method.")
	}

	confirmed, err := s.client.Checkout(ctx, orderID, paymentMethodID)
	if err != nil {
		return fmt.Errorf("failed to checkout order %s: %w", orderID, err)
	}

	if confirmed != nil && confirmed.ID.Equal(orderID) && confirmed.Status != model.OrderStatusPending {
		slog.Info("checkout confirmed",
			slog.String("order_id", orderID.String()),
			slog.String("status", string(confirmed.Status)),
		)
		return nil
	}

	s.tracker.Mark(sessionID, orderID, paymentMethodID)
	slog.Info("checkout accepted, awaiting confirmation",
		slog.String("order_id", orderID.String()),
		slog.String("payment_method_id", paymentMethodID.String()),
	)
	return nil
}

