package model

import "time"

// OrderStatus は注文のステータスを表す。
// 遷移はバックエンドのみが決定する。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderRestaurant は注文明細に含まれるレストランの概要。
type OrderRestaurant struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ID         ID              `json:"id"`
	MenuItem   MenuItem        `json:"menuItem"`
	Quantity   int             `json:"quantity"`
	Restaurant OrderRestaurant `json:"restaurant"`
}

// Subtotal は明細の小計を返す。
func (i OrderItem) Subtotal() float64 {
	return i.MenuItem.Price * float64(i.Quantity)
}

// Order はバックエンドが保持する注文。このアプリケーションからは読み取り専用。
type Order struct {
	ID         ID          `json:"id"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	OrderItems []OrderItem `json:"orderItems"`
}

// Total は注文合計（単価×数量の総和）を返す。
func (o Order) Total() float64 {
	var total float64
	for _, item := range o.OrderItems {
		total += item.Subtotal()
	}
	return total
}
