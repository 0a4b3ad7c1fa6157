package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
	"github.com/hitoshi/foodorder/internal/order"
)

const ordersPath = "/dashboard/orders"

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	PlaceFromCart(ctx context.Context, sessionID string) (*model.Order, error)
	List(ctx context.Context, sessionID string) ([]order.View, []model.ID, error)
	Cancel(ctx context.Context, role model.Role, orderID model.ID) error
	Checkout(ctx context.Context, sessionID string, role model.Role, orderID, paymentMethodID model.ID) error
}

// PaymentLister はチェックアウトで選択する支払い方法を取得する。
type PaymentLister interface {
	List(ctx context.Context) ([]model.PaymentMethod, error)
}

type ordersView struct {
	Orders         []order.View
	OrdersFailed   bool
	CanManage      bool
	Checkout       *order.View
	PaymentMethods []model.PaymentMethod
	MethodsFailed  bool
}

// OrderHandler は注文一覧と注文操作のHTTPハンドラー。
type OrderHandler struct {
	orders   OrderServiceInterface
	payments PaymentLister
	layout   *layout
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(orders OrderServiceInterface, payments PaymentLister, carts cart.Store, renderer *Renderer) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		layout:   &layout{renderer: renderer, carts: carts},
	}
}

// List は注文一覧を表示する。?checkout={id} が指定された場合は支払いパネルを開く。
// GET /dashboard/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionOf(ctx)

	view := ordersView{CanManage: session.User.Role != model.RoleMember}
	checkoutID := model.ParseID(r.URL.Query().Get("checkout"))
	wantMethods := view.CanManage && !checkoutID.IsZero()

	var (
		wg          sync.WaitGroup
		unreflected []model.ID
		ordersErr   error
		methodsErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		view.Orders, unreflected, ordersErr = h.orders.List(ctx, session.ID)
	}()
	if wantMethods {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view.PaymentMethods, methodsErr = h.payments.List(ctx)
		}()
	}
	wg.Wait()

	if ordersErr != nil {
		slog.Error("failed to fetch orders", slog.String("error", ordersErr.Error()))
		view.OrdersFailed = true
		view.Orders = nil
	}
	if methodsErr != nil {
		slog.Error("failed to fetch payment methods", slog.String("error", methodsErr.Error()))
		view.MethodsFailed = true
	}

	if wantMethods {
		for i := range view.Orders {
			v := &view.Orders[i]
			if v.ID.Equal(checkoutID) && !v.AwaitingConfirmation && order.CanAct(v.Status, session.User.Role) {
				view.Checkout = v
				break
			}
		}
	}

	p := h.layout.page(r, "orders", "Orders")
	for _, id := range unreflected {
		p.Notices = append(p.Notices, fmt.Sprintf("Payment for order #%s has not been reflected yet. Please check again later.", id))
	}
	p.Data = view
	h.layout.render(w, http.StatusOK, "orders", p)
}

// Cancel は注文をキャンセルする。
// POST /dashboard/orders/{orderID}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	orderID := model.ParseID(chi.URLParam(r, "orderID"))

	if err := h.orders.Cancel(r.Context(), session.User.Role, orderID); err != nil {
		if isCode(err, model.ErrCodeActionNotAllowed) {
			h.layout.accessDenied(w, r, "orders")
			return
		}
		slog.Error("failed to cancel order",
			slog.String("order_id", orderID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(ordersPath, "cancel_failed"))
		return
	}

	redirect(w, r, ordersPath)
}

// Checkout は選択された支払い方法で注文を確定する。
// POST /dashboard/orders/{orderID}/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	orderID := model.ParseID(chi.URLParam(r, "orderID"))
	paymentMethodID := model.ParseID(r.PostFormValue("payment_method_id"))

	err := h.orders.Checkout(r.Context(), session.ID, session.User.Role, orderID, paymentMethodID)
	switch {
	case err == nil:
		redirect(w, r, ordersPath)
	case isCode(err, model.ErrCodeActionNotAllowed):
		h.layout.accessDenied(w, r, "orders")
	case isCode(err, model.ErrCodeValidation):
		redirect(w, r, withNotice(ordersPath+"?checkout="+url.QueryEscape(orderID.String()), "select_method"))
	default:
		slog.Error("failed to checkout order",
			slog.String("order_id", orderID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(ordersPath+"?checkout="+url.QueryEscape(orderID.String()), "checkout_failed"))
	}
}

// isCode はerrが指定コードの*model.APIErrorかを判定する。
func isCode(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
