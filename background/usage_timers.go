package background

import (
	"context"
	"fmt"
	"ipfs-service-provider/metrics"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCleanUsageInterval  = 60 * time.Minute
	defaultBackupUsageInterval = 1 * time.Minute
	backupUsageTimeout         = 30 * time.Second // 單次備份的 MongoDB 操作上限
)

// UsageTasks TimerControllers 需要的使用量統計操作
type UsageTasks interface {
	CleanUsage() int
	BackupUsage(ctx context.Context) error
}

// TimerControllers 定期清除過期使用紀錄並備份到資料庫。
// 每個計時器在工作完成後才重新設定，同一個工作不會重疊執行。
type TimerControllers struct {
	logger         zerolog.Logger
	usage          UsageTasks
	cleanInterval  time.Duration
	backupInterval time.Duration

	mu          sync.Mutex
	started     bool
	stopped     bool
	cleanTimer  *time.Timer
	backupTimer *time.Timer
	inFlight    sync.WaitGroup
}

func NewTimerControllers(logger zerolog.Logger, usage UsageTasks, cleanInterval, backupInterval time.Duration) *TimerControllers {
	if cleanInterval <= 0 {
		cleanInterval = defaultCleanUsageInterval
	}
	if backupInterval <= 0 {
		backupInterval = defaultBackupUsageInterval
	}
	return &TimerControllers{
		logger:         logger.With().Str("module", "timer_controllers").Logger(),
		usage:          usage,
		cleanInterval:  cleanInterval,
		backupInterval: backupInterval,
	}
}

// StartTimers 啟動兩個計時器，重複呼叫無效
func (tc *TimerControllers) StartTimers() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.started || tc.stopped {
		return
	}
	tc.started = true

	tc.cleanTimer = time.AfterFunc(tc.cleanInterval, func() {
		tc.tick(&tc.cleanTimer, tc.cleanInterval, tc.cleanUsage)
	})
	tc.backupTimer = time.AfterFunc(tc.backupInterval, func() {
		tc.tick(&tc.backupTimer, tc.backupInterval, tc.backupUsage)
	})

	tc.logger.Info().
		Dur("clean_interval", tc.cleanInterval).
		Dur("backup_interval", tc.backupInterval).
		Msg("使用量統計計時器已啟動")
}

// StopTimers 停止計時器並等待執行中的工作結束
func (tc *TimerControllers) StopTimers() {
	tc.mu.Lock()
	if tc.stopped {
		tc.mu.Unlock()
		return
	}
	tc.stopped = true
	if tc.cleanTimer != nil {
		tc.cleanTimer.Stop()
	}
	if tc.backupTimer != nil {
		tc.backupTimer.Stop()
	}
	tc.mu.Unlock()

	tc.inFlight.Wait()
	tc.logger.Info().Msg("使用量統計計時器已停止")
}

// tick 執行一次工作，結束後重新設定計時器
func (tc *TimerControllers) tick(timer **time.Timer, interval time.Duration, task func() bool) {
	tc.mu.Lock()
	if tc.stopped {
		tc.mu.Unlock()
		return
	}
	tc.inFlight.Add(1)
	tc.mu.Unlock()

	defer func() {
		tc.mu.Lock()
		if !tc.stopped {
			(*timer).Reset(interval)
		}
		tc.mu.Unlock()
		tc.inFlight.Done()
	}()

	task()
}

// cleanUsage 清除過期紀錄，成功回傳 true
func (tc *TimerControllers) cleanUsage() bool {
	start := time.Now()
	err := tc.safeRun("clean_usage", func() error {
		tc.usage.CleanUsage()
		return nil
	})
	metrics.RecordUsageOperation(metrics.OperationCleanUsage, metrics.StatusFromError(err), metrics.SourceTimer, time.Since(start))

	if err != nil {
		tc.logger.Error().Err(err).Msg("清除過期使用紀錄失敗")
		return false
	}
	return true
}

// backupUsage 以目前記憶體內容覆寫資料庫備份，成功回傳 true
func (tc *TimerControllers) backupUsage() bool {
	start := time.Now()
	err := tc.safeRun("backup_usage", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), backupUsageTimeout)
		defer cancel()
		return tc.usage.BackupUsage(ctx)
	})
	metrics.RecordUsageOperation(metrics.OperationBackupUsage, metrics.StatusFromError(err), metrics.SourceTimer, time.Since(start))

	if err != nil {
		tc.logger.Error().Err(err).Msg("備份使用紀錄失敗，下次排程重試")
		return false
	}
	return true
}

// safeRun 將工作中的 panic 轉為 error
func (tc *TimerControllers) safeRun(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			tc.logger.Error().
				Str("task", name).
				Interface("panic", r).
				Msg("排程工作發生 panic")
			err = fmt.Errorf("%s panic: %v", name, r)
		}
	}()
	return fn()
}
