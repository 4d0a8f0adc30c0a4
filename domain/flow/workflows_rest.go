package flow

import (
	"context"
	"net/http"
	"protocolo/session"

	"github.com/gin-gonic/gin"
)

var (
	PathWorkflows = "/v1/workflows"
)

type RegistryProvider interface {
	Registry(ctx context.Context, tenantID string) (*Registry, error)
}

func RegisterWorkflowsRestAPI(r *gin.Engine, provider RegistryProvider, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathWorkflows, middleWares...)
	h := &workflowsHandler{provider: provider}
	g.GET("", h.handleList)
	g.GET(":moduleType", h.handleDetail)
}

type workflowsHandler struct {
	provider RegistryProvider
}

func (h *workflowsHandler) handleList(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	registry, err := h.provider.Registry(s.Ctx(), s.TenantID)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, registry.List())
}

func (h *workflowsHandler) handleDetail(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	registry, err := h.provider.Registry(s.Ctx(), s.TenantID)
	if err != nil {
		panic(err)
	}
	wf, err := registry.GetWorkflow(c.Param("moduleType"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, wf)
}
