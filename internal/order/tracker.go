package order

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/foodorder/internal/model"
)

// DefaultReconcileWindow はチェックアウト成功後、サーバーの状態変化を待つ時間。
const DefaultReconcileWindow = 2 * time.Minute

// UnconfirmedRecorder は反映されなかったチェックアウトを記録するインターフェース。
type UnconfirmedRecorder interface {
	RecordCheckoutUnconfirmed()
}

// View は画面表示用の注文。
// AwaitingConfirmation はチェックアウト直後でサーバーがまだPENDINGを返している状態を表し、
// サーバーのCONFIRMEDとは区別する。
type View struct {
	model.Order
	AwaitingConfirmation bool
}

type pendingCheckout struct {
	paymentMethodID model.ID
	markedAt        time.Time
}

// Tracker はセッションごとにチェックアウト済みで未確認の注文を保持する。
type Tracker struct {
	mu       sync.Mutex
	pending  map[string]map[string]pendingCheckout // sessionID -> orderID -> checkout
	window   time.Duration
	recorder UnconfirmedRecorder
	now      func() time.Time
}

// NewTracker はTrackerを生成する。windowが0以下の場合はDefaultReconcileWindowを使用する。
func NewTracker(window time.Duration, recorder UnconfirmedRecorder) *Tracker {
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return &Tracker{
		pending:  make(map[string]map[string]pendingCheckout),
		window:   window,
		recorder: recorder,
		now:      time.Now,
	}
}

// Mark はチェックアウト成功を記録する。同じ注文を再度Markした場合は時刻を更新する。
func (t *Tracker) Mark(sessionID string, orderID, paymentMethodID model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	orders, ok := t.pending[sessionID]
	if !ok {
		orders = make(map[string]pendingCheckout)
		t.pending[sessionID] = orders
	}
	orders[orderID.String()] = pendingCheckout{
		paymentMethodID: paymentMethodID,
		markedAt:        t.now(),
	}
}

// Reconcile は最新の注文一覧と確認待ちの注文を突き合わせる。
// サーバーがPENDING以外を返した注文はサーバーの値を採用して確認待ちを解除する。
// ウィンドウを過ぎてもPENDINGのままの注文は確認待ちを解除し、unreflectedとして返す。
func (t *Tracker) Reconcile(sessionID string, orders []model.Order) (views []View, unreflected []model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.pending[sessionID]
	now := t.now()
	views = make([]View, 0, len(orders))

	for _, o := range orders {
		v := View{Order: o}
		key := o.ID.String()
		p, ok := pending[key]
		if !ok {
			views = append(views, v)
			continue
		}

		switch {
		case o.Status != model.OrderStatusPending:
			delete(pending, key)
		case now.Sub(p.markedAt) < t.window:
			v.AwaitingConfirmation = true
		default:
			delete(pending, key)
			unreflected = append(unreflected, o.ID)
			slog.Warn("checkout not reflected by backend",
				slog.String("session_id", sessionID),
				slog.String("order_id", key),
				slog.String("payment_method_id", p.paymentMethodID.String()),
				slog.Duration("elapsed", now.Sub(p.markedAt)),
			)
			if t.recorder != nil {
				t.recorder.RecordCheckoutUnconfirmed()
			}
		}
		views = append(views, v)
	}

	// 一覧に現れない注文もウィンドウを過ぎたら破棄する
	for key, p := range pending {
		if now.Sub(p.markedAt) >= t.window {
			delete(pending, key)
		}
	}
	if len(pending) == 0 {
		delete(t.pending, sessionID)
	}

	return views, unreflected
}

// Forget はセッションの確認待ち状態をすべて破棄する。
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, sessionID)
}

// Sweep はウィンドウを過ぎた確認待ちを全セッションから破棄し、破棄した件数を返す。
// 注文一覧を再表示しないままログアウトや期限切れになったセッションの状態を回収する。
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	swept := 0
	for sessionID, orders := range t.pending {
		for key, p := range orders {
			if now.Sub(p.markedAt) >= t.window {
				delete(orders, key)
				swept++
			}
		}
		if len(orders) == 0 {
			delete(t.pending, sessionID)
		}
	}
	return swept
}

// Len は確認待ちを保持しているセッション数を返す。
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
