package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
)

const cartPath = "/dashboard/cart"

type cartView struct {
	Lines []cart.Line
	Total float64
}

// CartHandler はカート画面のHTTPハンドラー。
type CartHandler struct {
	carts  cart.Store
	orders OrderServiceInterface
	layout *layout
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(carts cart.Store, orders OrderServiceInterface, renderer *Renderer) *CartHandler {
	return &CartHandler{
		carts:  carts,
		orders: orders,
		layout: &layout{renderer: renderer, carts: carts},
	}
}

// Show はカートの内容を表示する。
// GET /dashboard/cart
func (h *CartHandler) Show(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())

	c, err := h.carts.Get(r.Context(), session.ID)
	if err != nil {
		slog.Error("failed to load cart",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		c = &cart.Cart{}
	}

	p := h.layout.page(r, "cart", "Cart")
	p.Data = cartView{Lines: c.Lines, Total: c.Total()}
	h.layout.render(w, http.StatusOK, "cart", p)
}

// UpdateQuantity はカート内の数量を変更する。1未満の値は1として扱う。
// POST /dashboard/cart/items/{itemID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	itemID := model.ParseID(chi.URLParam(r, "itemID"))

	quantity, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}

	if _, err := cart.Update(r.Context(), h.carts, session.ID, func(c *cart.Cart) error {
		c.UpdateQuantity(itemID, quantity)
		return nil
	}); err != nil {
		slog.Error("failed to update cart quantity",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(cartPath, "cart_failed"))
		return
	}

	redirect(w, r, cartPath)
}

// Remove はカートから項目を削除する。
// POST /dashboard/cart/items/{itemID}/remove
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	itemID := model.ParseID(chi.URLParam(r, "itemID"))

	if _, err := cart.Update(r.Context(), h.carts, session.ID, func(c *cart.Cart) error {
		c.Remove(itemID)
		return nil
	}); err != nil {
		slog.Error("failed to remove cart item",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(cartPath, "cart_failed"))
		return
	}

	redirect(w, r, cartPath)
}

// PlaceOrder はカート全体を注文として送信し、成功したら注文一覧へ遷移する。
// 失敗した場合はカートを残したままカート画面に戻る。
// POST /dashboard/cart/order
func (h *CartHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())

	if _, err := h.orders.PlaceFromCart(r.Context(), session.ID); err != nil {
		if isCode(err, model.ErrCodeEmptyCart) {
			redirect(w, r, withNotice(cartPath, "empty_cart"))
			return
		}
		slog.Error("failed to place order",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(cartPath, "order_failed"))
		return
	}

	redirect(w, r, ordersPath)
}
