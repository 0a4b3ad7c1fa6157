package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/middleware"
	"github.com/hitoshi/foodorder/internal/model"
	"github.com/hitoshi/foodorder/internal/order"
	"github.com/hitoshi/foodorder/internal/payment"
	"github.com/hitoshi/foodorder/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

// dashboardPages はダッシュボードのレイアウトで描画する画面。
var dashboardPages = []string{
	"restaurants",
	"cart",
	"orders",
	"payments",
	"access_denied",
}

// Page はすべての画面テンプレートに渡すデータ。
type Page struct {
	Title     string
	Active    string
	User      *model.User
	CartCount int
	CSRFToken string
	Notices   []string
	Data      any
}

// Renderer は埋め込みテンプレートから画面を描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer はテンプレートを解析してRendererを生成する。
// バックエンド由来の説明文はsanitizerを通して埋め込む。
func NewRenderer(sanitizer security.ContentSanitizerService) (*Renderer, error) {
	funcs := template.FuncMap{
		"safeHTML":   sanitizer.HTML,
		"money":      formatMoney,
		"formatTime": formatTime,
		"badge":      order.Badge,
		"badgeClass": order.BadgeClass,
		"canAct":     order.CanAct,
		"details":    payment.Entries,
		"add":        func(a, b int) int { return a + b },
	}

	pages := make(map[string]*template.Template, len(dashboardPages)+1)

	login, err := template.New("login").Funcs(funcs).ParseFS(templateFS,
		"templates/base.html", "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	pages["login"] = login

	for _, name := range dashboardPages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/dashboard.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render は画面を描画する。描画に失敗した場合は途中の出力を捨てて500を返す。
func (rn *Renderer) Render(w http.ResponseWriter, status int, name string, p *Page) {
	t, ok := rn.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// layout はダッシュボード画面の共通部分（サイドバーのユーザー情報、カート件数）を組み立てる。
type layout struct {
	renderer *Renderer
	carts    cart.Store
}

// page はリクエストのセッションからダッシュボード用のPageを生成する。
func (l *layout) page(r *http.Request, active, title string) *Page {
	p := &Page{
		Title:     title,
		Active:    active,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Notices:   noticesOf(r),
	}

	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return p
	}
	p.User = &session.User

	if c, err := l.carts.Get(r.Context(), session.ID); err == nil {
		p.CartCount = c.Len()
	} else {
		slog.Warn("failed to load cart for sidebar", slog.String("error", err.Error()))
	}
	return p
}

func (l *layout) render(w http.ResponseWriter, status int, name string, p *Page) {
	l.renderer.Render(w, status, name, p)
}

// accessDenied は権限不足の画面を403で描画する。
func (l *layout) accessDenied(w http.ResponseWriter, r *http.Request, active string) {
	l.render(w, http.StatusForbidden, "access_denied", l.page(r, active, "Access Denied"))
}

// noticeMessages はリダイレクト先で表示する通知。クエリの値は表示せずコードで引く。
var noticeMessages = map[string]string{
	"empty_cart":      "Your cart is empty.",
	"order_failed":    "Failed to place order. Please try again.",
	"cart_failed":     "Failed to update your cart. Please try again.",
	"cancel_failed":   "Failed to cancel order. Please try again.",
	"checkout_failed": "Payment failed. Please try again.",
	"select_method":   "Please select a payment method.",
}

func noticesOf(r *http.Request) []string {
	var notices []string
	for _, code := range r.URL.Query()["notice"] {
		if msg, ok := noticeMessages[code]; ok {
			notices = append(notices, msg)
		}
	}
	return notices
}

// withNotice はパスに通知コードを付与する。
func withNotice(path, code string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "notice=" + code
}

// sessionOf はセッションミドルウェアを通過したリクエストのセッションを返す。
func sessionOf(ctx context.Context) *model.Session {
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		// ルーティングでセッションミドルウェアの内側にのみ配置している
		panic("handler: session missing from request context")
	}
	return session
}

// redirect はPOST後に303で画面へ戻す。
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// formatMoney は金額を通貨記号付きで表示する。小数部は必要な桁だけ表示する。
func formatMoney(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2 Jan 2006, 15:04")
}
