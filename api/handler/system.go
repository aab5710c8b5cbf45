package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"letter-portal/api/response"
	"letter-portal/pkg/metrics"
	"letter-portal/vars"
)

type SystemHandler struct {
	db      *gorm.DB
	metrics *metrics.MetricsCollector
}

func NewSystemHandler(db *gorm.DB, mc *metrics.MetricsCollector) *SystemHandler {
	return &SystemHandler{db: db, metrics: mc}
}

// Health 检查数据库连接
func (h *SystemHandler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code: -1,
			Msg:  "database unavailable",
			Data: gin.H{"service": vars.ServiceName},
		})
		return
	}
	response.Success(c, gin.H{"service": vars.ServiceName})
}

func (h *SystemHandler) Metrics(c *gin.Context) {
	response.Success(c, gin.H{
		"counters":  h.metrics.GetCounters(),
		"latencies": h.metrics.GetLatencies(),
	})
}
