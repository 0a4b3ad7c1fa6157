package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID はバックエンドが発行する識別子を表す。
// バックエンドは数値と文字列のどちらでIDを返す場合もあるため、
// 受け取った形式を保持したまま再送できるようにする。
type ID struct {
	value   string
	numeric bool
}

// ParseID はフォームやURLパスから受け取った文字列をIDに変換する。
// 整数として解釈できる値は数値IDとして扱う。
func ParseID(s string) ID {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID{value: s, numeric: true}
	}
	return ID{value: s}
}

// String はIDの文字列表現を返す。URLやフォームの値に使用する。
func (id ID) String() string {
	return id.value
}

// IsZero はIDが未設定かどうかを返す。
func (id ID) IsZero() bool {
	return id.value == ""
}

// Equal は表現形式（数値/文字列）を無視してIDを比較する。
func (id ID) Equal(other ID) bool {
	return id.value == other.value
}

// MarshalJSON は受け取った形式（数値または文字列）でIDを書き出す。
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON は数値と文字列の両方のIDを受け付ける。
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID{value: n.String(), numeric: true}
	return nil
}

// Text はバックエンドが文字列または数値で返す表示用の値を保持する。
// 例: 配達時間 "30 min" と 30 の両方を受け付ける。
type Text string

// UnmarshalJSON は文字列・数値・真偽値をそのまま文字列として受け付ける。
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}
