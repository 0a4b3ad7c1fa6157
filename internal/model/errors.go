package model

import "fmt"

// APIError は画面に表示するエラーの統一フォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, authorization, network
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeLoginFailed          = "LOGIN_FAILED"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidDetails       = "INVALID_DETAILS"
	ErrCodeAccessDenied         = "ACCESS_DENIED"
	ErrCodeActionNotAllowed     = "ACTION_NOT_ALLOWED"
	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	ErrCodePaymentMethodFailure = "PAYMENT_METHOD_FAILED"
)

// 画面カテゴリ
const (
	CategoryAuth          = "auth"
	CategoryValidation    = "validation"
	CategoryAuthorization = "authorization"
	CategoryNetwork       = "network"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// バックエンドが返したメッセージがあればそれを優先する。
func NewInvalidCredentialsError(message string) *APIError {
	if message == "" {
		message = "Login failed"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  message,
		Category: CategoryAuth,
		Action:   "ユーザー名、パスワード、ロールを確認してください。",
	}
}

// NewLoginFailedError はネットワーク障害などでログインできなかった場合のエラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Login failed",
		Category: CategoryNetwork,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidDetailsError は支払い方法の詳細がJSONとして解釈できない場合のエラーを生成する。
func NewInvalidDetailsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDetails,
		Message:  "Invalid JSON format in details field.",
		Category: CategoryValidation,
		Action:   "詳細はJSONオブジェクト形式で入力してください。",
	}
}

// NewPaymentMethodFailureError は支払い方法の保存に失敗した場合のエラーを生成する。
func NewPaymentMethodFailureError(message string) *APIError {
	if message == "" {
		message = "Failed to save payment method."
	}
	return &APIError{
		Code:     ErrCodePaymentMethodFailure,
		Message:  message,
		Category: CategoryNetwork,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAccessDeniedError は権限不足エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Administrator privileges required to access this page.",
		Category: CategoryAuthorization,
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewActionNotAllowedError は現在のロールでは実行できない注文操作のエラーを生成する。
func NewActionNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeActionNotAllowed,
		Message:  "Your role is not allowed to perform this action.",
		Category: CategoryAuthorization,
		Action:   "管理者またはマネージャーに依頼してください。",
	}
}

// NewEmptyCartError は空のカートで注文しようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "Your Cart is Empty",
		Category: CategoryValidation,
		Action:   "メニューから商品を追加してください。",
	}
}

// NewBackendUnavailableError はバックエンドAPIに到達できない場合のエラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "The ordering service is currently unavailable.",
		Category: CategoryNetwork,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
