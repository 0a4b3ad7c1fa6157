package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
)

// CatalogClient はレストランとメニューを取得するバックエンドAPIのインターフェース。
type CatalogClient interface {
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID model.ID) ([]model.MenuItem, error)
}

// restaurantRow は一覧の1件。Openはメニューパネルを開いているレストランを示す。
type restaurantRow struct {
	model.Restaurant
	Open bool
}

// menuRow はメニューの1件と現在のカート内数量。
type menuRow struct {
	Item     model.MenuItem
	Quantity int
}

type restaurantsView struct {
	Restaurants []restaurantRow
	Selected    *model.Restaurant
	Menu        []menuRow
}

// RestaurantHandler はレストラン一覧とメニューからのカート操作のHTTPハンドラー。
type RestaurantHandler struct {
	catalog CatalogClient
	carts   cart.Store
	layout  *layout
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(catalog CatalogClient, carts cart.Store, renderer *Renderer) *RestaurantHandler {
	return &RestaurantHandler{
		catalog: catalog,
		carts:   carts,
		layout:  &layout{renderer: renderer, carts: carts},
	}
}

// List はレストラン一覧を表示する。?menu={id} が指定された場合はそのメニューを開く。
// 取得に失敗した場合はログに記録し、空の一覧で表示する。
// GET /dashboard, GET /dashboard/restaurants
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionOf(ctx)

	restaurants, err := h.catalog.ListRestaurants(ctx)
	if err != nil {
		slog.Error("failed to fetch restaurants", slog.String("error", err.Error()))
		restaurants = nil
	}

	view := restaurantsView{Restaurants: make([]restaurantRow, 0, len(restaurants))}

	var selected *model.Restaurant
	if menuParam := r.URL.Query().Get("menu"); menuParam != "" {
		menuID := model.ParseID(menuParam)
		for i := range restaurants {
			if restaurants[i].ID.Equal(menuID) {
				selected = &restaurants[i]
				break
			}
		}
	}

	if selected != nil {
		items, err := h.catalog.GetMenu(ctx, selected.ID)
		if err != nil {
			slog.Error("failed to fetch menu",
				slog.String("restaurant_id", selected.ID.String()),
				slog.String("error", err.Error()),
			)
			selected = nil
		} else {
			c, err := h.carts.Get(ctx, session.ID)
			if err != nil {
				slog.Warn("failed to load cart", slog.String("error", err.Error()))
				c = &cart.Cart{}
			}
			view.Menu = make([]menuRow, 0, len(items))
			for _, item := range items {
				view.Menu = append(view.Menu, menuRow{Item: item, Quantity: c.Quantity(item.ID)})
			}
		}
	}

	for _, rest := range restaurants {
		view.Restaurants = append(view.Restaurants, restaurantRow{
			Restaurant: rest,
			Open:       selected != nil && selected.ID.Equal(rest.ID),
		})
	}
	view.Selected = selected

	p := h.layout.page(r, "restaurants", "Restaurants")
	p.Data = view
	h.layout.render(w, http.StatusOK, "restaurants", p)
}

// AddItem はメニュー項目をカートに1つ追加する。
// 価格などはフォームではなくバックエンドのメニューから取得する。
// POST /dashboard/restaurants/{restaurantID}/menu/{itemID}/add
func (h *RestaurantHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionOf(ctx)
	restaurantID := model.ParseID(chi.URLParam(r, "restaurantID"))
	itemID := model.ParseID(chi.URLParam(r, "itemID"))

	items, err := h.catalog.GetMenu(ctx, restaurantID)
	if err != nil {
		slog.Error("failed to fetch menu for cart",
			slog.String("restaurant_id", restaurantID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(menuPath(restaurantID), "cart_failed"))
		return
	}

	var found *model.MenuItem
	for i := range items {
		if items[i].ID.Equal(itemID) {
			found = &items[i]
			break
		}
	}
	if found == nil {
		http.Error(w, "menu item not found", http.StatusNotFound)
		return
	}

	if _, err := cart.Update(ctx, h.carts, session.ID, func(c *cart.Cart) error {
		c.Add(*found)
		return nil
	}); err != nil {
		slog.Error("failed to add item to cart",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, withNotice(menuPath(restaurantID), "cart_failed"))
		return
	}

	redirect(w, r, menuPath(restaurantID))
}

// DecrementItem はカート内の数量を1減らす。数量は1未満にならず、カートにない場合は何もしない。
// POST /dashboard/restaurants/{restaurantID}/menu/{itemID}/decrement
func (h *RestaurantHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionOf(ctx)
	restaurantID := model.ParseID(chi.URLParam(r, "restaurantID"))
	itemID := model.ParseID(chi.URLParam(r, "itemID"))

	if _, err := cart.Update(ctx, h.carts, session.ID, func(c *cart.Cart) error {
		c.UpdateQuantity(itemID, c.Quantity(itemID)-1)
		return nil
	}); err != nil {
		slog.Error("failed to update cart",
			slog.String("item_id", itemID.String()),
			slog.String("error", err.Error()),
		)
	}

	redirect(w, r, menuPath(restaurantID))
}

func menuPath(restaurantID model.ID) string {
	return "/dashboard/restaurants?menu=" + url.QueryEscape(restaurantID.String())
}
