package model

// Restaurant はバックエンドが返すレストラン情報。
type Restaurant struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Country      string `json:"country"`
	Rating       Text   `json:"rating"`
	DeliveryTime Text   `json:"deliveryTime"`
}

// MenuItem はレストランのメニュー項目。
type MenuItem struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}
