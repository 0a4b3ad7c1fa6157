// Package cart はセッション単位のカート状態を提供する。
// カートはメニュー項目IDで一意な明細の順序付きリストで、
// 同一IDの追加は数量の加算としてマージされる。
package cart

import "github.com/hitoshi/foodorder/internal/model"

// Line はカートの明細を表す。
// Quantityは常に1以上で、同一IDの明細はカート内に1つしか存在しない。
type Line struct {
	ID          model.ID `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
}

// Subtotal は明細の小計を返す。
func (l Line) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Cart は明細の順序付きリスト。ゼロ値は空のカートとして使用できる。
// 並行アクセスの保護はStore側の責務とする。
type Cart struct {
	Lines []Line `json:"lines"`
}

// Add はメニュー項目をカートに追加する。
// 同一IDの明細が既にあれば数量を1増やし、なければ数量1で末尾に追加する。
// 既存明細の順序は保持される。
func (c *Cart) Add(item model.MenuItem) {
	if i := c.index(item.ID); i >= 0 {
		c.Lines[i].Quantity++
		return
	}
	c.Lines = append(c.Lines, Line{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		Quantity:    1,
	})
}

// Remove は指定IDの明細を削除する。存在しない場合は何もしない。
func (c *Cart) Remove(id model.ID) {
	i := c.index(id)
	if i < 0 {
		return
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// UpdateQuantity は指定IDの明細の数量を max(1, quantity) に設定する。
// 存在しない場合は何もしない。
func (c *Cart) UpdateQuantity(id model.ID, quantity int) {
	i := c.index(id)
	if i < 0 {
		return
	}
	c.Lines[i].Quantity = max(1, quantity)
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.Lines = nil
}

// Quantity は指定IDの数量を返す。カートにない場合は0。
func (c *Cart) Quantity(id model.ID) int {
	if i := c.index(id); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

// Total は単価×数量の総和を返す。キャッシュせず呼び出しごとに計算する。
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// Len は明細数を返す。
func (c *Cart) Len() int {
	return len(c.Lines)
}

// IsEmpty はカートが空かどうかを返す。
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Snapshot は呼び出し元が変更しても影響しないコピーを返す。
func (c *Cart) Snapshot() *Cart {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return &Cart{Lines: lines}
}

func (c *Cart) index(id model.ID) int {
	for i, l := range c.Lines {
		if l.ID.Equal(id) {
			return i
		}
	}
	return -1
}
