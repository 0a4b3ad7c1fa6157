package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/middleware"
	"github.com/hitoshi/foodorder/internal/model"
	"github.com/hitoshi/foodorder/internal/order"
	"github.com/hitoshi/foodorder/internal/security"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn          func(ctx context.Context, username, password, role string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	currentSessionFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password, role string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password, role)
	}
	return nil, model.NewLoginFailedError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.currentSessionFn != nil {
		return m.currentSessionFn(ctx, sessionID)
	}
	return nil, nil
}

type mockCatalog struct {
	listRestaurantsFn func(ctx context.Context) ([]model.Restaurant, error)
	getMenuFn         func(ctx context.Context, restaurantID model.ID) ([]model.MenuItem, error)
}

func (m *mockCatalog) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	if m.listRestaurantsFn != nil {
		return m.listRestaurantsFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) GetMenu(ctx context.Context, restaurantID model.ID) ([]model.MenuItem, error) {
	if m.getMenuFn != nil {
		return m.getMenuFn(ctx, restaurantID)
	}
	return nil, nil
}

type mockOrderService struct {
	placeFromCartFn func(ctx context.Context, sessionID string) (*model.Order, error)
	listFn          func(ctx context.Context, sessionID string) ([]order.View, []model.ID, error)
	cancelFn        func(ctx context.Context, role model.Role, orderID model.ID) error
	checkoutFn      func(ctx context.Context, sessionID string, role model.Role, orderID, paymentMethodID model.ID) error
}

func (m *mockOrderService) PlaceFromCart(ctx context.Context, sessionID string) (*model.Order, error) {
	if m.placeFromCartFn != nil {
		return m.placeFromCartFn(ctx, sessionID)
	}
	return &model.Order{}, nil
}

func (m *mockOrderService) List(ctx context.Context, sessionID string) ([]order.View, []model.ID, error) {
	if m.listFn != nil {
		return m.listFn(ctx, sessionID)
	}
	return nil, nil, nil
}

func (m *mockOrderService) Cancel(ctx context.Context, role model.Role, orderID model.ID) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, role, orderID)
	}
	return nil
}

func (m *mockOrderService) Checkout(ctx context.Context, sessionID string, role model.Role, orderID, paymentMethodID model.ID) error {
	if m.checkoutFn != nil {
		return m.checkoutFn(ctx, sessionID, role, orderID, paymentMethodID)
	}
	return nil
}

type mockPaymentService struct {
	listFn func(ctx context.Context) ([]model.PaymentMethod, error)
	saveFn func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error
}

func (m *mockPaymentService) List(ctx context.Context) ([]model.PaymentMethod, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPaymentService) Save(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, user, id, methodType, detailsText)
	}
	return nil
}

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

// --- テスト環境 ---

const (
	testCSRFToken      = "test-csrf-token"
	adminSessionID     = "admin-session"
	managerSessionID   = "manager-session"
	memberSessionID    = "member-session"
	unknownSessionID   = "unknown-session"
	testSessionMaxAge  = 86400
	testRestaurantID   = "1"
	testMenuItemID     = "10"
	testOtherMenuItem  = "11"
	testPendingOrderID = "100"
)

func testSession(id string, userID string, role model.Role) *model.Session {
	return &model.Session{
		ID:        id,
		Token:     "token-" + id,
		User:      model.User{ID: model.ParseID(userID), Username: strings.ToLower(string(role)) + "-user", Role: role},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

type testEnv struct {
	router   http.Handler
	carts    *cart.MemoryStore
	auth     *mockAuthService
	catalog  *mockCatalog
	orders   *mockOrderService
	payments *mockPaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	renderer, err := NewRenderer(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	env := &testEnv{
		carts:    cart.NewMemoryStore(),
		auth:     &mockAuthService{},
		catalog:  &mockCatalog{},
		orders:   &mockOrderService{},
		payments: &mockPaymentService{},
	}

	env.router = NewRouter(&RouterDeps{
		SessionFinder: &mockSessionFinder{sessions: map[string]*model.Session{
			adminSessionID:   testSession(adminSessionID, "1", model.RoleAdmin),
			managerSessionID: testSession(managerSessionID, "2", model.RoleManager),
			memberSessionID:  testSession(memberSessionID, "3", model.RoleMember),
		}},
		RateLimiter:    rl,
		Renderer:       renderer,
		Carts:          env.carts,
		AuthService:    env.auth,
		AuthConfig:     AuthHandlerConfig{SessionMaxAge: testSessionMaxAge},
		Catalog:        env.catalog,
		OrderService:   env.orders,
		PaymentService: env.payments,
	})
	return env
}

// get はセッションCookie付きでGETリクエストを送る。sessionIDが空の場合はCookieなし。
func (e *testEnv) get(path, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// post はCSRFトークンとセッションCookie付きでフォームをPOSTする。
func (e *testEnv) post(path, sessionID string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addToCart(t *testing.T, sessionID string, items ...model.MenuItem) {
	t.Helper()
	if _, err := cart.Update(context.Background(), e.carts, sessionID, func(c *cart.Cart) error {
		for _, item := range items {
			c.Add(item)
		}
		return nil
	}); err != nil {
		t.Fatalf("failed to seed cart: %v", err)
	}
}

func (e *testEnv) cartOf(t *testing.T, sessionID string) *cart.Cart {
	t.Helper()
	c, err := e.carts.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}
	return c
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	assertStatus(t, rec, status)
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func assertBodyContains(t *testing.T, rec *httptest.ResponseRecorder, substrs ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, s := range substrs {
		if !strings.Contains(body, s) {
			t.Errorf("body should contain %q", s)
		}
	}
}

func assertBodyNotContains(t *testing.T, rec *httptest.ResponseRecorder, substrs ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, s := range substrs {
		if strings.Contains(body, s) {
			t.Errorf("body should not contain %q", s)
		}
	}
}

func testMenu() []model.MenuItem {
	return []model.MenuItem{
		{ID: model.ParseID(testMenuItemID), Name: "Paneer Tikka", Description: "<b>Spicy</b><script>alert(1)</script>", Price: 250},
		{ID: model.ParseID(testOtherMenuItem), Name: "Naan", Description: "Butter naan", Price: 40.5},
	}
}

func testRestaurants() []model.Restaurant {
	return []model.Restaurant{
		{ID: model.ParseID(testRestaurantID), Name: "Spice Hub", Country: "India", Rating: "4.5", DeliveryTime: "30 min"},
		{ID: model.ParseID("2"), Name: "Burger Barn", Country: "America", Rating: "4.1", DeliveryTime: "25 min"},
	}
}

func newFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
