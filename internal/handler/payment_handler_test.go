package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/hitoshi/foodorder/internal/model"
)

// --- テスト ---

func TestPaymentShow_NonAdmin_AccessDenied(t *testing.T) {
	for _, sid := range []string{managerSessionID, memberSessionID} {
		t.Run(sid, func(t *testing.T) {
			env := newTestEnv(t)
			env.payments.listFn = func(ctx context.Context) ([]model.PaymentMethod, error) {
				t.Error("List should not be called for non-admin")
				return nil, nil
			}

			rec := env.get("/dashboard/payments", sid)

			assertStatus(t, rec, http.StatusForbidden)
			assertBodyContains(t, rec, "Access Denied", "Administrator privileges required to access this page.")
			// サイドバーにもPaymentsは表示しない
			assertBodyNotContains(t, rec, `href="/dashboard/payments"`)
		})
	}
}

func TestPaymentShow_Admin_ListsMethods(t *testing.T) {
	env := newTestEnv(t)
	env.payments.listFn = func(ctx context.Context) ([]model.PaymentMethod, error) {
		return testPaymentMethods(), nil
	}

	rec := env.get("/dashboard/payments", adminSessionID)

	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec,
		"Add New Method",
		`action="/dashboard/payments"`,
		"Credit Card", "number:", "**** 1234",
		"Digital Wallet", "PayFast",
		`href="/dashboard/payments?edit=7"`,
		`<option value="Bank Transfer">`,
	)
}

func TestPaymentShow_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/dashboard/payments", adminSessionID)

	assertBodyContains(t, rec, "No payment methods configured")
}

func TestPaymentShow_LoadError(t *testing.T) {
	env := newTestEnv(t)
	env.payments.listFn = func(ctx context.Context) ([]model.PaymentMethod, error) {
		return nil, errors.New("backend down")
	}

	rec := env.get("/dashboard/payments", adminSessionID)

	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "Failed to load payment methods.")
}

func TestPaymentShow_Edit_PrefillsForm(t *testing.T) {
	env := newTestEnv(t)
	env.payments.listFn = func(ctx context.Context) ([]model.PaymentMethod, error) {
		return testPaymentMethods(), nil
	}

	rec := env.get("/dashboard/payments?edit=8", adminSessionID)

	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec,
		"Edit Payment Method",
		`action="/dashboard/payments/8"`,
		`value="Digital Wallet"`,
		"PayFast",
		"Update Method",
	)
}

func TestPaymentShow_EditUnknown_ShowsAddForm(t *testing.T) {
	env := newTestEnv(t)
	env.payments.listFn = func(ctx context.Context) ([]model.PaymentMethod, error) {
		return testPaymentMethods(), nil
	}

	rec := env.get("/dashboard/payments?edit=999", adminSessionID)

	assertBodyContains(t, rec, "Add New Method")
	assertBodyNotContains(t, rec, "Edit Payment Method")
}

func TestPaymentSave_Create(t *testing.T) {
	env := newTestEnv(t)
	var gotUser *model.User
	var gotID model.ID
	var gotType, gotDetails string
	env.payments.saveFn = func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
		gotUser, gotID, gotType, gotDetails = user, id, methodType, detailsText
		return nil
	}

	rec := env.post("/dashboard/payments", adminSessionID, url.Values{
		"type":    {" UPI "},
		"details": {`{"vpa":"shop@bank"}`},
	})

	assertRedirect(t, rec, http.StatusSeeOther, "/dashboard/payments")
	if gotUser == nil || gotUser.Role != model.RoleAdmin {
		t.Errorf("user = %+v, want admin", gotUser)
	}
	if !gotID.IsZero() {
		t.Errorf("id = %q, want zero for create", gotID)
	}
	if gotType != "UPI" || gotDetails != `{"vpa":"shop@bank"}` {
		t.Errorf("Save args = (%q, %q)", gotType, gotDetails)
	}
}

func TestPaymentSave_Update(t *testing.T) {
	env := newTestEnv(t)
	var gotID model.ID
	env.payments.saveFn = func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
		gotID = id
		return nil
	}

	rec := env.post("/dashboard/payments/8", adminSessionID, url.Values{
		"type":    {"Digital Wallet"},
		"details": {`{"provider":"PayFast"}`},
	})

	assertRedirect(t, rec, http.StatusSeeOther, "/dashboard/payments")
	if gotID.String() != "8" {
		t.Errorf("id = %q, want 8", gotID)
	}
}

func TestPaymentSave_MissingFields_Returns422(t *testing.T) {
	env := newTestEnv(t)
	env.payments.saveFn = func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
		t.Error("Save should not be called")
		return nil
	}

	rec := env.post("/dashboard/payments", adminSessionID, url.Values{"type": {"UPI"}})

	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertBodyContains(t, rec, "Payment type and details are required.", `value="UPI"`)
}

func TestPaymentSave_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid details", model.NewInvalidDetailsError(), http.StatusUnprocessableEntity, "Invalid JSON format in details field."},
		{"backend failure", model.NewPaymentMethodFailureError("Duplicate payment type"), http.StatusBadGateway, "Duplicate payment type"},
		{"unexpected error", errors.New("boom"), http.StatusBadGateway, "Failed to save payment method."},
		{"access denied", model.NewAccessDeniedError(), http.StatusForbidden, "Access Denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.payments.saveFn = func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
				return tt.err
			}

			rec := env.post("/dashboard/payments/8", adminSessionID, url.Values{
				"type":    {"Credit Card"},
				"details": {"not json"},
			})

			assertStatus(t, rec, tt.status)
			assertBodyContains(t, rec, tt.message)
			if tt.status != http.StatusForbidden {
				// 入力値を保持して編集フォームを再表示する
				assertBodyContains(t, rec, "not json", `action="/dashboard/payments/8"`)
			}
		})
	}
}

func TestPaymentSave_NonAdmin_AccessDenied(t *testing.T) {
	env := newTestEnv(t)
	env.payments.saveFn = func(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
		t.Error("Save should not be called for non-admin")
		return nil
	}

	rec := env.post("/dashboard/payments", managerSessionID, url.Values{
		"type":    {"UPI"},
		"details": {`{}`},
	})

	assertStatus(t, rec, http.StatusForbidden)
}
