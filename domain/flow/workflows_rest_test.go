package flow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"protocolo/bizerror"
	"protocolo/domain/flow"
	"protocolo/session"
	"protocolo/testinfra"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestWorkflowsRestAPI(t *testing.T) {
	RegisterTestingT(t)

	simple := flow.ModuleWorkflow{ModuleType: "PODA", Name: "Poda", DefaultSLA: 20, Stages: saudeWorkflow().Stages[2:3]}
	source := &countingSource{defs: map[string][]flow.ModuleWorkflow{"t1": {simple}}}
	router := gin.Default()
	router.Use(bizerror.ErrorHandling(), session.IdentityFilter())
	flow.RegisterWorkflowsRestAPI(router, flow.NewTenantRegistries(source, 0))

	newRequest := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(context.Background())
		req.Header.Set(session.HeaderTenant, "t1")
		req.Header.Set(session.HeaderActor, "100")
		return req
	}

	t.Run("should list workflows of the tenant", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest("/v1/workflows"), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"moduleType":"PODA","name":"Poda","description":"","defaultSLA":20,
			"stages":[{"id":"concluido","name":"Concluído","description":"","order":3,"color":"","allowedNextStages":[]}]}]`))
	})

	t.Run("should show one workflow", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest("/v1/workflows/PODA"), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"moduleType":"PODA","name":"Poda","description":"","defaultSLA":20,
			"stages":[{"id":"concluido","name":"Concluído","description":"","order":3,"color":"","allowedNextStages":[]}]}`))
	})

	t.Run("should return 404 on unknown module type", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest("/v1/workflows/IPTU"), router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"workflow IPTU not found",
			"data":{"resource":"workflow","key":"IPTU"}}`))
	})

	t.Run("should return 401 without identity headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/workflows", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body).To(MatchJSON(`{"code":"common.unauthenticated","message":"unauthenticated","data":null}`))
	})
}
