// Package auth はバックエンドへのログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/foodorder/internal/api"
	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/model"
	"github.com/hitoshi/foodorder/internal/repository"
)

// LoginClient はバックエンドのログインAPIのインターフェース。
type LoginClient interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
}

// LoginRecorder はログイン結果のメトリクス記録インターフェース。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// SessionForgetter はセッション単位のプロセス内状態を破棄する。order.Trackerが満たす。
type SessionForgetter interface {
	Forget(sessionID string)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	client      LoginClient
	sessionRepo repository.SessionRepository
	carts       cart.Store
	recorder    LoginRecorder
	config      ServiceConfig
	now         func() time.Time

	// Forgetter が設定されていれば、ログアウト時にセッションの確認待ち状態を破棄する。
	Forgetter SessionForgetter
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	client LoginClient,
	sessionRepo repository.SessionRepository,
	carts cart.Store,
	recorder LoginRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		client:      client,
		sessionRepo: sessionRepo,
		carts:       carts,
		recorder:    recorder,
		config:      config,
		now:         time.Now,
	}
}

// Login はバックエンドで認証し、成功した場合のみセッションを発行する。
// 失敗時は何も保存せず *model.APIError を返す。
func (s *Service) Login(ctx context.Context, username, password, role string) (*model.Session, error) {
	resp, err := s.client.Login(ctx, api.LoginRequest{
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		s.recordLogin(false)
		if api.IsClientError(err) {
			return nil, model.NewInvalidCredentialsError(api.Message(err))
		}
		if api.StatusCode(err) != 0 {
			slog.Error("backend rejected login",
				slog.String("username", username),
				slog.Int("status", api.StatusCode(err)),
				slog.String("error", err.Error()),
			)
			return nil, model.NewBackendUnavailableError()
		}
		slog.Error("login request failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewLoginFailedError()
	}

	if resp == nil || resp.Token == "" {
		s.recordLogin(false)
		slog.Warn("login response without token", slog.String("username", username))
		return nil, model.NewLoginFailedError()
	}

	user := resp.User
	normalized, ok := model.ParseRole(string(user.Role))
	if !ok {
		slog.Warn("unknown role from backend, treating as member",
			slog.String("username", user.Username),
			slog.String("role", string(user.Role)),
		)
		normalized = model.RoleMember
	}
	user.Role = normalized

	session, err := s.createSession(ctx, resp.Token, user)
	if err != nil {
		s.recordLogin(false)
		slog.Error("failed to create session",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewLoginFailedError()
	}

	s.recordLogin(true)
	slog.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return session, nil
}

// Logout はセッションとカートを破棄する。
// セッション削除に失敗してもカートと確認待ち状態の破棄は行う。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	var firstErr error
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		firstErr = fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.carts.Delete(ctx, sessionID); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to delete cart: %w", err)
	}
	if s.Forgetter != nil {
		s.Forgetter.Forget(sessionID)
	}
	if firstErr != nil {
		return firstErr
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession は有効なセッションを返す。存在しない・期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, token string, user model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("token already expired at %s", expiresAt.Format(time.RFC3339))
	}

	session := &model.Session{
		ID:        sessionID,
		Token:     token,
		User:      user,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordLogin(success bool) {
	if s.recorder != nil {
		s.recorder.RecordLogin(success)
	}
}

// tokenExpiry はトークンがJWTの場合にexpクレームを返す。
// 署名は検証しない。トークンはバックエンドにとってのみ意味を持つ。
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
