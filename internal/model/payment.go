package model

// PaymentMethod はバックエンドが保持する支払い方法。
// Detailsは任意のキーと値の組で、構文以外の検証は行わない。
type PaymentMethod struct {
	ID      ID             `json:"id"`
	Type    string         `json:"type"`
	Details map[string]any `json:"details"`
}
