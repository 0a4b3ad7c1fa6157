// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はバックエンドが返すメニュー説明などのテキストをサニタイズし、
// 画面にHTMLとして埋め込めるようにする。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 簡単な書式タグのみを通過させる。
package security

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はバックエンド由来テキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はテキストをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, strong, em, b, i）のみを通過させ、
	// それ以外のタグと全ての属性を除去する。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
	// HTML はSanitizeの結果をテンプレートにそのまま埋め込める型で返す。
	HTML(raw string) template.HTML
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// リンクと画像は許可しない。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i",
	)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はテキストをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// HTML はサニタイズ済みのHTMLを返す。
func (s *contentSanitizer) HTML(raw string) template.HTML {
	return template.HTML(s.policy.Sanitize(raw))
}
