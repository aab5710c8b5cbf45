package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"letter-portal/pkg/metrics"
	"letter-portal/types"
)

// Auditor 由 service.LetterService 实现
type Auditor interface {
	AuditCompletion(ctx context.Context) (*types.AuditReport, error)
}

// StartCronJob 按 spec (带秒的 cron 表达式) 定期审计信件状态, 返回的 cron 由调用方 Stop
func StartCronJob(spec string, auditor Auditor, logger *zap.Logger, mc *metrics.MetricsCollector) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		RunAudit(context.Background(), auditor, logger, mc)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("[Cron] audit job scheduled", zap.String("spec", spec))
	return c, nil
}

// RunAudit 执行一次审计并记录结果
func RunAudit(ctx context.Context, auditor Auditor, logger *zap.Logger, mc *metrics.MetricsCollector) *types.AuditReport {
	start := time.Now()
	report, err := auditor.AuditCompletion(ctx)
	mc.ObserveLatency("audit_completion", time.Since(start))
	if err != nil {
		mc.IncrementCounter("audit_runs", "failed")
		logger.Error("[Cron] audit failed", zap.Error(err))
		return nil
	}

	mc.IncrementCounter("audit_runs", "ok")
	logger.Info("[Cron] audit finished",
		zap.Int("checked", report.Checked),
		zap.Int("inconsistent", len(report.Inconsistent)))
	return report
}
