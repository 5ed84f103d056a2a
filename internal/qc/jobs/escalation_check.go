package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitepulse/siteqc/internal/qc/service"
)

// EscalationCheck 逾期缺陷自动升级检查
// 由外部调度器周期调用，本身不持有定时器，可安全重复执行
func EscalationCheck(ctx context.Context, defects *service.DefectService, logger *zap.Logger) {
	escalated, err := defects.CheckAndEscalateOverdueDefects(ctx)
	if err != nil {
		logger.Error("逾期缺陷升级检查失败", zap.Error(err))
		return
	}
	if escalated > 0 {
		logger.Info("逾期缺陷升级检查完成", zap.Int("escalated", escalated))
	}
}
