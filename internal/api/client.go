// Package api はフード注文バックエンドのREST APIクライアントを提供する。
// すべてのリクエストはコンテキストに保持されたセッショントークンを
// Bearer認証ヘッダーとして付与する。リトライ、キャッシュ、重複排除は行わない。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// pathPrefix はバックエンドAPIの共通パスプレフィックス。
	pathPrefix = "/api"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxResponseSize = 5 << 20
	// requestIDHeader はログ突合用のリクエストIDヘッダー。
	requestIDHeader = "X-Request-ID"
)

type tokenContextKey struct{}

// WithToken はバックエンド呼び出しに使用するセッショントークンをコンテキストに格納する。
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext はコンテキストからセッショントークンを取得する。
// 未設定の場合は空文字列を返す。
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// Recorder はAPI呼び出しの結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordAPICall(endpoint string, statusCode int, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAPICall(string, int, time.Duration) {}

// Client はバックエンドREST APIのクライアント。
// ベースURLは起動時に1回だけ設定される。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	recorder   Recorder
}

// NewClient はClientを生成する。recorderがnilの場合は記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, recorder Recorder) *Client {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/") + pathPrefix,
		recorder:   recorder,
	}
}

// do はリクエストを送信し、成功時にレスポンスボディをoutへデコードする。
// endpointはメトリクスとログに使うラベル（例: "orders.list"）。
// outがnilまたはボディが空の場合はデコードしない。
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	respBody, err := c.send(ctx, endpoint, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// send はリクエストを送信し、2xxの場合はレスポンスボディを返す。
// 2xx以外の場合は*Errorを返す。
func (c *Client) send(ctx context.Context, endpoint, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordAPICall(endpoint, 0, time.Since(start))
		c.logger.Error("backend request failed",
			slog.String("endpoint", endpoint),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.recorder.RecordAPICall(endpoint, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newError(endpoint, resp.StatusCode, respBody)
		c.logger.Warn("backend returned error status",
			slog.String("endpoint", endpoint),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	return respBody, nil
}
