// Package order は注文一覧の表示ルール、注文操作、チェックアウト後の確認待ち状態の管理を提供する。
package order

import "github.com/hitoshi/foodorder/internal/model"

// CanAct は注文に対してキャンセル・チェックアウトを提示できるかを返す。
// PENDINGの注文かつMEMBER以外のロールのみ操作できる。
func CanAct(status model.OrderStatus, role model.Role) bool {
	return status == model.OrderStatusPending && role != model.RoleMember
}

// Badge はステータスに対応する表示ラベルを返す。
// PENDINGなど表示しないステータスでは空文字を返す。
func Badge(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusCancelled:
		return "Cancelled"
	case model.OrderStatusConfirmed, model.OrderStatusPreparing:
		return "Payment Completed"
	case model.OrderStatusDelivered:
		return "Delivered"
	default:
		return ""
	}
}

// BadgeClass はステータスバッジのCSSクラスを返す。
func BadgeClass(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusPending:
		return "badge-pending"
	case model.OrderStatusConfirmed:
		return "badge-confirmed"
	case model.OrderStatusPreparing:
		return "badge-preparing"
	case model.OrderStatusDelivered:
		return "badge-delivered"
	case model.OrderStatusCancelled:
		return "badge-cancelled"
	default:
		return "badge-unknown"
	}
}
