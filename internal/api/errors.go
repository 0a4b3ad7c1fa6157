package api

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Error はバックエンドが2xx以外のステータスを返したことを表す。
type Error struct {
	Endpoint   string
	StatusCode int
	// Message はレスポンスボディのmessage（またはerror）フィールド。無い場合は空。
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Endpoint, e.StatusCode)
}

// newError はレスポンスボディからメッセージを抽出してErrorを生成する。
// ボディの形式はバックエンドの実装に依存するため、JSONでない場合は無視する。
func newError(endpoint string, statusCode int, body []byte) *Error {
	e := &Error{Endpoint: endpoint, StatusCode: statusCode}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "error", "error.message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
				e.Message = r.Str
				break
			}
		}
	}
	return e
}

// StatusCode はerrがErrorであればステータスコードを返す。それ以外は0。
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Message はerrがErrorであればバックエンドのメッセージを返す。
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// IsClientError はバックエンドが4xxを返したかどうかを判定する。
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}
