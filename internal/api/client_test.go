package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// recordedCall はmockRecorderが受け取った呼び出し。
type recordedCall struct {
	endpoint   string
	statusCode int
}

type mockRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *mockRecorder) RecordAPICall(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{endpoint: endpoint, statusCode: statusCode})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *mockRecorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	rec := &mockRecorder{}
	return NewClient(server.Client(), newTestLogger(&buf), server.URL+"/", rec), rec
}

func TestClient_AttachesBearerTokenWhenPresent(t *testing.T) {
	var gotAuth, gotRequestID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	ctx := WithToken(context.Background(), "tok-123")
	if _, err := c.ListRestaurants(ctx); err != nil {
		t.Fatalf("ListRestaurants returned error: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID should be set")
	}
}

func TestClient_OmitsAuthorizationWithoutToken(t *testing.T) {
	var hasAuth bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{"token":"t","user":{"id":1,"username":"alice","role":"ADMIN"}}`))
	})

	if _, err := c.Login(context.Background(), LoginRequest{Username: "alice", Password: "pw", Role: "admin"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if hasAuth {
		t.Error("Authorization header should not be sent without a token")
	}
}

func TestClient_Login_SendsCredentialsAndDecodesResponse(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("path = %s, want /api/auth/login", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "secret" || body["role"] != "member" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"token":"tok","user":{"id":7,"username":"alice","role":"MEMBER"}}`))
	})

	resp, err := c.Login(context.Background(), LoginRequest{Username: "alice", Password: "secret", Role: "member"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.Token != "tok" {
		t.Errorf("Token = %q, want %q", resp.Token, "tok")
	}
	if resp.User.ID.String() != "7" || resp.User.Role != model.RoleMember {
		t.Errorf("User = %+v", resp.User)
	}
	if len(rec.calls) != 1 || rec.calls[0].endpoint != "auth.login" || rec.calls[0].statusCode != http.StatusOK {
		t.Errorf("recorded calls = %+v", rec.calls)
	}
}

func TestClient_ErrorStatus_ReturnsErrorWithBackendMessage(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	})

	_, err := c.Login(context.Background(), LoginRequest{Username: "x", Password: "y", Role: "member"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Invalid credentials")
	}
	if !IsClientError(err) {
		t.Error("IsClientError should be true")
	}
	if Message(err) != "Invalid credentials" {
		t.Errorf("Message(err) = %q", Message(err))
	}
	if rec.calls[0].statusCode != http.StatusUnauthorized {
		t.Errorf("recorded status = %d, want 401", rec.calls[0].statusCode)
	}
}

func TestClient_ErrorStatus_NonJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := c.ListOrders(context.Background())
	if StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d, want 502 (err=%v)", StatusCode(err), err)
	}
	if Message(err) != "" {
		t.Errorf("Message = %q, want empty", Message(err))
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	rec := &mockRecorder{}
	c := NewClient(http.DefaultClient, newTestLogger(&buf), url, rec)

	_, err := c.ListRestaurants(context.Background())
	if err == nil {
		t.Fatal("expected transport error, got nil")
	}
	if StatusCode(err) != 0 {
		t.Errorf("transport error should not carry a status, got %d", StatusCode(err))
	}
	if len(rec.calls) != 1 || rec.calls[0].statusCode != 0 {
		t.Errorf("recorded calls = %+v", rec.calls)
	}
}

func TestClient_GetMenu_Path(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/restaurants/12/menu" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":1,"name":"Dosa","description":"crispy","price":120}]`))
	})

	items, err := c.GetMenu(context.Background(), model.ParseID("12"))
	if err != nil {
		t.Fatalf("GetMenu returned error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Dosa" || items[0].Price != 120 {
		t.Errorf("items = %+v", items)
	}
}

func TestClient_PlaceOrder_SendsCartLines(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		want := `{"items":[{"id":1,"name":"Dosa","description":"crispy","price":120,"quantity":2}]}`
		if string(body) != want {
			t.Errorf("body = %s, want %s", body, want)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":99,"status":"PENDING"}`))
	})

	var ct cart.Cart
	item := model.MenuItem{ID: model.ParseID("1"), Name: "Dosa", Description: "crispy", Price: 120}
	ct.Add(item)
	ct.Add(item)

	order, err := c.PlaceOrder(context.Background(), ct.Lines)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order == nil || order.ID.String() != "99" || order.Status != model.OrderStatusPending {
		t.Errorf("order = %+v", order)
	}
}

func TestClient_PlaceOrder_EmptyCartSendsEmptyArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"items":[]}` {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
	})

	order, err := c.PlaceOrder(context.Background(), nil)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order != nil {
		t.Errorf("order = %+v, want nil for empty body", order)
	}
}

func TestClient_CancelOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/orders/5/cancel" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":5,"status":"CANCELLED"}`))
	})

	order, err := c.CancelOrder(context.Background(), model.ParseID("5"))
	if err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("Status = %s, want CANCELLED", order.Status)
	}
}

func TestClient_Checkout_SendsPaymentMethodID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders/5/checkout" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"paymentMethodId":3}` {
			t.Errorf("body = %s", body)
		}
		w.Write([]byte(`{"id":5,"status":"CONFIRMED"}`))
	})

	order, err := c.Checkout(context.Background(), model.ParseID("5"), model.ParseID("3"))
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if order.Status != model.OrderStatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", order.Status)
	}
}

func TestClient_Checkout_NonOrderBodyIsStillSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`payment accepted`))
	})

	order, err := c.Checkout(context.Background(), model.ParseID("5"), model.ParseID("3"))
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if order != nil {
		t.Errorf("order = %+v, want nil", order)
	}
}

func TestClient_PaymentMethods(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Method == http.MethodGet {
			w.Write([]byte(`[{"id":1,"type":"Credit Card","details":{"number":"**** 1234"}}]`))
			return
		}
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	methods, err := c.ListPaymentMethods(ctx)
	if err != nil {
		t.Fatalf("ListPaymentMethods returned error: %v", err)
	}
	if len(methods) != 1 || methods[0].Details["number"] != "**** 1234" {
		t.Errorf("methods = %+v", methods)
	}

	input := PaymentMethodInput{Type: "Digital Wallet", Details: map[string]any{"provider": "UPI"}}
	if err := c.CreatePaymentMethod(ctx, input); err != nil {
		t.Fatalf("CreatePaymentMethod returned error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/payment-methods" {
		t.Errorf("create request = %s %s", gotMethod, gotPath)
	}
	if gotBody["type"] != "Digital Wallet" {
		t.Errorf("create body = %v", gotBody)
	}

	if err := c.UpdatePaymentMethod(ctx, model.ParseID("1"), input); err != nil {
		t.Fatalf("UpdatePaymentMethod returned error: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/payment-methods/1" {
		t.Errorf("update request = %s %s", gotMethod, gotPath)
	}
}

func TestClient_ListOrders_Decodes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"status":"PENDING","createdAt":"2026-10-01T12:00:00Z",
			"orderItems":[{"id":10,"menuItem":{"id":2,"name":"Idli","price":40},"quantity":3,"restaurant":{"id":4,"name":"Udupi"}}]}]`))
	})

	orders, err := c.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("len(orders) = %d, want 1", len(orders))
	}
	if orders[0].Total() != 120 {
		t.Errorf("Total = %v, want 120", orders[0].Total())
	}
	if orders[0].OrderItems[0].Restaurant.Name != "Udupi" {
		t.Errorf("restaurant = %+v", orders[0].OrderItems[0].Restaurant)
	}
}
