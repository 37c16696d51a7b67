package tasks

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

// ExpirePendingOrdersTaskDef garbage-collects PendingOrder records that have
// outlived their TTL. The abandoned PENDING payments behind them are left as
// they are: without gateway confirmation they are never auto-failed, they
// simply age out of reconciliation.
type ExpirePendingOrdersTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *ExpirePendingOrdersTaskDef) TaskID() string {
	return "expire_pending_orders"
}

// HandleExecution deletes all pending orders past their TTL
func (t *ExpirePendingOrdersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	cutoff := time.Now().Add(-models.PendingOrderTTL)

	res := db.Where("created_at < ?", cutoff).Delete(&models.PendingOrder{})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected > 0 {
		log.Printf("[Task: expire_pending_orders] Swept %d expired pending orders", res.RowsAffected)
	}

	return map[string]interface{}{
		"status":        "success",
		"swept_count":   res.RowsAffected,
		"cutoff_before": cutoff.Format(time.RFC3339),
	}, nil
}

// ExpirePendingOrdersTask is the singleton instance of ExpirePendingOrdersTaskDef
var ExpirePendingOrdersTask = &ExpirePendingOrdersTaskDef{}
