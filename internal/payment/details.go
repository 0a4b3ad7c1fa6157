// Package payment は支払い方法の管理（一覧・追加・編集）を提供する。
package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Types は画面に表示する定義済みの支払い種別。これ以外の任意の種別も受け付ける。
var Types = []string{
	"Credit Card",
	"Debit Card",
	"Digital Wallet",
	"Bank Transfer",
}

// ParseDetails はフォームに入力された詳細をJSONオブジェクトとして解釈する。
// 配列やスカラー値など、オブジェクト以外はエラーにする。
func ParseDetails(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var details map[string]any
	if err := dec.Decode(&details); err != nil {
		return nil, fmt.Errorf("details is not a JSON object: %w", err)
	}
	if details == nil {
		return nil, fmt.Errorf("details is not a JSON object: null")
	}
	if dec.More() {
		return nil, fmt.Errorf("details has trailing data")
	}
	return details, nil
}

// FormatDetails は編集フォームに表示するためインデント付きJSONに整形する。
func FormatDetails(details map[string]any) string {
	if details == nil {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(details); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Entry は一覧に表示する詳細の1項目。
type Entry struct {
	Key   string
	Value string
}

// Entries は詳細をキー順の表示用項目に変換する。
// ネストした値はJSON文字列で表示する。
func Entries(details map[string]any) []Entry {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: displayValue(details[k])})
	}
	return entries
}

func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64, bool:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
