// Package handler は画面のHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/foodorder/internal/middleware"
	"github.com/hitoshi/foodorder/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, role string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// loginForm はログインフォームの入力。
type loginForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Role     string `validate:"oneof=admin manager member"`
}

type roleOption struct {
	Value string
	Label string
}

var roleOptions = []roleOption{
	{Value: "admin", Label: "Admin"},
	{Value: "manager", Label: "Manager"},
	{Value: "member", Label: "Member"},
}

// loginView はログイン画面の表示データ。
type loginView struct {
	Username    string
	Role        string
	Roles       []roleOption
	FieldErrors map[string]string
	Error       string
}

var loginFieldMessages = map[string]string{
	"Username": "Username is required",
	"Password": "Password is required",
	"Role":     "Role must be admin, manager or member",
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	renderer *Renderer
	validate *validator.Validate
	now      func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer *Renderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		renderer: renderer,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Root はログイン画面にリダイレクトする。
// GET /
func (h *AuthHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

// LoginPage はログインフォームを表示する。ログイン済みの場合はダッシュボードへ移動する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		session, err := h.service.CurrentSession(r.Context(), cookie.Value)
		if err != nil {
			slog.Warn("failed to look up session on login page", slog.String("error", err.Error()))
		}
		if session.IsAuthenticated() {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}

	h.renderLogin(w, r, http.StatusOK, loginView{Role: "member"})
}

// Login はログインフォームを処理する。
// 成功時はセッションCookieを設定してダッシュボードへ、失敗時はフォームにエラーを表示する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Role:     strings.ToLower(strings.TrimSpace(r.PostFormValue("role"))),
	}
	if form.Role == "" {
		form.Role = "member"
	}
	view := loginView{Username: form.Username, Role: form.Role}

	if fieldErrors := h.validateLogin(form); len(fieldErrors) > 0 {
		view.FieldErrors = fieldErrors
		h.renderLogin(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	session, err := h.service.Login(r.Context(), form.Username, form.Password, form.Role)
	if err != nil {
		status := http.StatusBadGateway
		view.Error = "Login failed"
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			view.Error = apiErr.Message
			if apiErr.Category == model.CategoryAuth {
				status = http.StatusUnauthorized
			}
		}
		h.renderLogin(w, r, status, view)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.ID, h.cookieMaxAge(session)))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout はセッションとカートを破棄する。
// 破棄に失敗してもCookieはクリアする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) validateLogin(form loginForm) map[string]string {
	err := h.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"username": err.Error()}
	}

	fieldErrors := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fieldErrors[strings.ToLower(fe.Field())] = loginFieldMessages[fe.Field()]
	}
	return fieldErrors
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, view loginView) {
	view.Roles = roleOptions
	h.renderer.Render(w, status, "login", &Page{
		Title:     "Sign In",
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Data:      view,
	})
}

// cookieMaxAge はセッションの有効期限までの秒数を返す。設定値を上限とする。
func (h *AuthHandler) cookieMaxAge(session *model.Session) int {
	maxAge := int(session.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge <= 0 || maxAge > h.config.SessionMaxAge {
		return h.config.SessionMaxAge
	}
	return maxAge
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
