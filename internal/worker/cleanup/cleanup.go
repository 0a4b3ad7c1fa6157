// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッション行の削除に合わせて、セッションに紐づくカートと
// 注文の確認待ち状態も破棄する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionDeleter は期限切れセッションを削除し、削除したIDを返す。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) ([]string, error)
}

// CartDeleter はセッションのカートを削除する。cart.Storeが満たす。
type CartDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// PendingTracker はセッション単位のプロセス内状態を破棄する。order.Trackerが満たす。
type PendingTracker interface {
	Forget(sessionID string)
	Sweep() int
}

// Recorder は削除件数のメトリクス記録インターフェース。
type Recorder interface {
	RecordSessionsCleaned(count int)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sessions SessionDeleter
	carts    CartDeleter
	logger   *slog.Logger

	// Tracker が設定されていれば、削除したセッションと期限を過ぎた確認待ち状態を破棄する。
	Tracker PendingTracker
	// Recorder が設定されていれば、削除件数を記録する。
	Recorder Recorder
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionDeleter, carts CartDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		carts:    carts,
		logger:   logger,
	}
}

// Run は期限切れセッションを削除し、紐づくカートを破棄する。
// カートの削除に失敗してもジョブは継続し、最後にまとめてエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	ids, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	cartFailures := 0
	for _, id := range ids {
		if err := j.carts.Delete(ctx, id); err != nil {
			cartFailures++
			j.logger.Warn("failed to delete cart for expired session",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		if j.Tracker != nil {
			j.Tracker.Forget(id)
		}
	}

	// 別プロセスがセッション行を削除した場合やログアウト済みの場合はidsに現れない
	swept := 0
	if j.Tracker != nil {
		swept = j.Tracker.Sweep()
	}

	if j.Recorder != nil {
		j.Recorder.RecordSessionsCleaned(len(ids))
	}

	j.logger.Info("session cleanup completed",
		slog.Int("deleted_count", len(ids)),
		slog.Int("cart_failures", cartFailures),
		slog.Int("swept_checkouts", swept),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if cartFailures > 0 {
		return fmt.Errorf("failed to delete %d of %d carts", cartFailures, len(ids))
	}
	return nil
}

// Start はcron式のスケジュールでジョブを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまでブロックする。
// 実行中のジョブは停止時に完了を待つ。
func (j *CleanupJob) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { j.runLogged(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}

	j.logger.Info("session cleanup scheduler started", slog.String("schedule", spec))

	j.runLogged(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	j.logger.Info("session cleanup scheduler stopped")
	return nil
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
