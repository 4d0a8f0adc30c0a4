package indices

import (
	"net/http"
	"protocolo/session"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	PathIndexRequests        = "/v1/indices/sync"
	PathPendingIndexRecovery = "/v1/indices/recovery"

	indexLogRecoveryLimiter = rate.NewLimiter(rate.Every(time.Minute), 1)
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	r.Group(PathIndexRequests, middleWares...).POST("", handleIndexRequest)
	r.Group(PathPendingIndexRecovery, middleWares...).POST("", handleCreatePendingIndexLogsRecovery)
}

func handleIndexRequest(c *gin.Context) {
	success, err := ScheduleNewSyncRunFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": success})
}

func handleCreatePendingIndexLogsRecovery(c *gin.Context) {
	if !indexLogRecoveryLimiter.Allow() {
		c.JSON(http.StatusOK, gin.H{"result": "request rate limited"})
		return
	}
	if err := IndexlogRecoveryRoutineFunc(session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, gin.H{"result": "started"})
}
