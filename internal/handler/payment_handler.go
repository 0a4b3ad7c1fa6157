package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
	"github.com/hitoshi/foodorder/internal/payment"
)

const paymentsPath = "/dashboard/payments"

// PaymentServiceInterface は支払い方法ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	List(ctx context.Context) ([]model.PaymentMethod, error)
	Save(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error
}

// paymentForm は支払い方法フォームの入力。
type paymentForm struct {
	Type    string `validate:"required,max=100"`
	Details string `validate:"required"`
}

type paymentsView struct {
	Editing    bool
	EditingID  model.ID
	Form       paymentForm
	Types      []string
	Error      string
	LoadFailed bool
	Methods    []model.PaymentMethod
}

// PaymentHandler は支払い方法管理画面のHTTPハンドラー。管理者のみ利用できる。
type PaymentHandler struct {
	service  PaymentServiceInterface
	layout   *layout
	validate *validator.Validate
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface, carts cart.Store, renderer *Renderer) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		layout:   &layout{renderer: renderer, carts: carts},
		validate: validator.New(),
	}
}

// Show は支払い方法の一覧とフォームを表示する。?edit={id} で編集フォームを開く。
// GET /dashboard/payments
func (h *PaymentHandler) Show(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	if !session.User.IsAdmin() {
		h.layout.accessDenied(w, r, "payments")
		return
	}

	view := h.load(r.Context())
	if editParam := r.URL.Query().Get("edit"); editParam != "" {
		if m := payment.Find(view.Methods, model.ParseID(editParam)); m != nil {
			view.Editing = true
			view.EditingID = m.ID
			view.Form = paymentForm{Type: m.Type, Details: payment.FormatDetails(m.Details)}
		}
	}

	h.render(w, r, http.StatusOK, view)
}

// Save は支払い方法を追加する。URLにIDがある場合は更新する。
// POST /dashboard/payments, POST /dashboard/payments/{methodID}
func (h *PaymentHandler) Save(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r.Context())
	if !session.User.IsAdmin() {
		h.layout.accessDenied(w, r, "payments")
		return
	}

	id := model.ParseID(chi.URLParam(r, "methodID"))
	form := paymentForm{
		Type:    strings.TrimSpace(r.PostFormValue("type")),
		Details: strings.TrimSpace(r.PostFormValue("details")),
	}

	if err := h.validate.Struct(form); err != nil {
		h.renderFormError(w, r, http.StatusUnprocessableEntity, id, form,
			"Payment type and details are required.")
		return
	}

	err := h.service.Save(r.Context(), &session.User, id, form.Type, form.Details)
	if err == nil {
		redirect(w, r, paymentsPath)
		return
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected payment method error", slog.String("error", err.Error()))
		apiErr = model.NewPaymentMethodFailureError("")
	}

	switch apiErr.Code {
	case model.ErrCodeAccessDenied:
		h.layout.accessDenied(w, r, "payments")
	case model.ErrCodeInvalidDetails:
		h.renderFormError(w, r, http.StatusUnprocessableEntity, id, form, apiErr.Message)
	default:
		h.renderFormError(w, r, http.StatusBadGateway, id, form, apiErr.Message)
	}
}

// load は一覧を取得する。失敗した場合はLoadFailedを立てる。
func (h *PaymentHandler) load(ctx context.Context) paymentsView {
	view := paymentsView{Types: payment.Types}
	methods, err := h.service.List(ctx)
	if err != nil {
		slog.Error("failed to fetch payment methods", slog.String("error", err.Error()))
		view.LoadFailed = true
		return view
	}
	view.Methods = methods
	return view
}

// renderFormError は入力値を保持したままエラー付きでフォームを再表示する。
func (h *PaymentHandler) renderFormError(w http.ResponseWriter, r *http.Request, status int, id model.ID, form paymentForm, message string) {
	view := h.load(r.Context())
	view.Editing = !id.IsZero()
	view.EditingID = id
	view.Form = form
	view.Error = message
	h.render(w, r, status, view)
}

func (h *PaymentHandler) render(w http.ResponseWriter, r *http.Request, status int, view paymentsView) {
	p := h.layout.page(r, "payments", "Payment Methods")
	p.Data = view
	h.layout.render(w, status, "payments", p)
}
