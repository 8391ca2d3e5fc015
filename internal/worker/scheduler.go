// Package worker はバックグラウンドの定期ジョブ実行基盤を提供する。
// ティッカーで登録されたジョブを順番に実行する。ジョブ間に依存関係はなく、
// 1つのジョブの失敗は他のジョブの実行を妨げない。
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Job は定期実行されるバックグラウンドジョブのインターフェース。
type Job interface {
	// Name はログ出力用のジョブ名を返す。
	Name() string
	// Run はジョブを1回実行する。冪等であること。
	Run(ctx context.Context) error
}

// Scheduler は定期ジョブのスケジューリングを行う。
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ジョブスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("job_count", len(s.jobs)),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ジョブスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は登録されたすべてのジョブを1回ずつ実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		start := time.Now()

		if err := job.Run(ctx); err != nil {
			s.logger.Error("ジョブの実行に失敗しました",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.logger.Info("ジョブが完了しました",
			slog.String("job", job.Name()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
}
