package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
)

// LoginRequest は /auth/login のリクエストボディ。
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResponse は /auth/login のレスポンスボディ。
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// placeOrderRequest は POST /orders のリクエストボディ。
type placeOrderRequest struct {
	Items []cart.Line `json:"items"`
}

// checkoutRequest は POST /orders/{id}/checkout のリクエストボディ。
type checkoutRequest struct {
	PaymentMethodID model.ID `json:"paymentMethodId"`
}

// PaymentMethodInput は支払い方法の作成・更新リクエストのボディ。
type PaymentMethodInput struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details"`
}

// Login は認証情報をバックエンドに送信し、トークンとユーザー情報を取得する。
// POST /auth/login
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, "auth.login", http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRestaurants はレストラン一覧を取得する。
// GET /restaurants
func (c *Client) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var restaurants []model.Restaurant
	if err := c.do(ctx, "restaurants.list", http.MethodGet, "/restaurants", nil, &restaurants); err != nil {
		return nil, err
	}
	return restaurants, nil
}

// GetMenu は指定レストランのメニューを取得する。
// GET /restaurants/{id}/menu
func (c *Client) GetMenu(ctx context.Context, restaurantID model.ID) ([]model.MenuItem, error) {
	var items []model.MenuItem
	path := "/restaurants/" + url.PathEscape(restaurantID.String()) + "/menu"
	if err := c.do(ctx, "restaurants.menu", http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrders はログインユーザーの注文一覧を取得する。
// GET /orders
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, "orders.list", http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PlaceOrder はカートの全明細で注文を作成する。
// POST /orders
func (c *Client) PlaceOrder(ctx context.Context, lines []cart.Line) (*model.Order, error) {
	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := c.send(ctx, "orders.place", http.MethodPost, "/orders", placeOrderRequest{Items: lines})
	if err != nil {
		return nil, err
	}
	return c.decodeOrder("orders.place", raw), nil
}

// CancelOrder は注文をキャンセルする。
// PATCH /orders/{id}/cancel
func (c *Client) CancelOrder(ctx context.Context, orderID model.ID) (*model.Order, error) {
	path := "/orders/" + url.PathEscape(orderID.String()) + "/cancel"
	raw, err := c.send(ctx, "orders.cancel", http.MethodPatch, path, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeOrder("orders.cancel", raw), nil
}

// Checkout は注文に支払い方法を紐付けて決済を依頼する。
// POST /orders/{id}/checkout
func (c *Client) Checkout(ctx context.Context, orderID, paymentMethodID model.ID) (*model.Order, error) {
	path := "/orders/" + url.PathEscape(orderID.String()) + "/checkout"
	body := checkoutRequest{PaymentMethodID: paymentMethodID}
	raw, err := c.send(ctx, "orders.checkout", http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.decodeOrder("orders.checkout", raw), nil
}

// ListPaymentMethods は支払い方法の一覧を取得する。
// GET /payment-methods
func (c *Client) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	var methods []model.PaymentMethod
	if err := c.do(ctx, "payment_methods.list", http.MethodGet, "/payment-methods", nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// CreatePaymentMethod は支払い方法を作成する。
// POST /payment-methods
func (c *Client) CreatePaymentMethod(ctx context.Context, input PaymentMethodInput) error {
	return c.do(ctx, "payment_methods.create", http.MethodPost, "/payment-methods", input, nil)
}

// UpdatePaymentMethod は支払い方法を更新する。
// PATCH /payment-methods/{id}
func (c *Client) UpdatePaymentMethod(ctx context.Context, id model.ID, input PaymentMethodInput) error {
	path := "/payment-methods/" + url.PathEscape(id.String())
	return c.do(ctx, "payment_methods.update", http.MethodPatch, path, input, nil)
}

// decodeOrder は更新後の注文としてレスポンスボディを解釈する。
// 成功ステータスで返ったボディが注文として読めない場合は成功扱いのままnilを返す。
func (c *Client) decodeOrder(endpoint string, raw []byte) *model.Order {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var order model.Order
	if err := json.Unmarshal(raw, &order); err != nil || order.ID.IsZero() {
		c.logger.Warn("backend response is not an order",
			slog.String("endpoint", endpoint),
		)
		return nil
	}
	return &order
}
