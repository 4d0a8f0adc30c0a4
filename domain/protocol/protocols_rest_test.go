package protocol_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"protocolo/bizerror"
	"protocolo/domain/protocol"
	"protocolo/domain/sla"
	"protocolo/session"
	"protocolo/testinfra"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestProtocolsRestAPI(t *testing.T) {
	RegisterTestingT(t)

	options := protocol.DefaultOptions()
	options.ReopenEnabled = true
	f := newManagerFixture(t, options)
	router := gin.Default()
	router.Use(bizerror.ErrorHandling(), session.IdentityFilter())
	protocol.RegisterProtocolsRestAPI(router, f.manager)

	newRequest := func(method, path, body string) *http.Request {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set(session.HeaderTenant, "t1")
		req.Header.Set(session.HeaderActor, "100")
		return req
	}

	var created protocol.ProtocolDetail
	t.Run("should create protocol", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, "/v1/protocols",
			`{"moduleType":"ATENDIMENTOS_SAUDE","summary":"consulta","citizenRef":"c1","departmentRef":"saude"}`), router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(json.Unmarshal([]byte(body), &created)).To(Succeed())
		Expect(created.Number).To(Equal("2024-000001"))
		Expect(created.CurrentStage).To(Equal("novo"))
		Expect(created.SLA.Status).To(Equal(sla.OnTrack))
		Expect(body).To(ContainSubstring(`"id":"` + created.ID.String() + `"`))
	})

	t.Run("should reject invalid creation", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, "/v1/protocols", `{"moduleType":"IPTU"`), router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"common.bad_param"`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, "/v1/protocols",
			`{"moduleType":"ATENDIMENTOS_SAUDE","citizenRef":"c1","departmentRef":"saude","priority":9}`), router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"protocol.priority_out_of_range","message":"priority 9 is out of range 1..5","data":9}`))
	})

	path := func(suffix string) string {
		return "/v1/protocols/" + created.ID.String() + suffix
	}

	t.Run("should refuse illegal transitions", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{"targetStage":"concluido"}`), router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"code":"protocol.illegal_transition","message":"transition from novo to concluido is not allowed",
			"data":{"fromStage":"novo","toStage":"concluido","allowedNextStages":["em_analise","cancelado"]}}`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{"targetStage":"arquivado"}`), router)
		Expect(status).To(Equal(http.StatusUnprocessableEntity))
		Expect(body).To(ContainSubstring(`"code":"protocol.invalid_target"`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{}`), router)
		Expect(status).To(Equal(http.StatusUnprocessableEntity))
		Expect(body).To(ContainSubstring(`"code":"protocol.invalid_target"`))
	})

	t.Run("should transit and report history", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{"targetStage":"em_analise","comment":"ok"}`), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"currentStage":"em_analise"`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodGet, path("/history"), ""), router)
		Expect(status).To(Equal(http.StatusOK))
		var history []protocol.HistoryEntry
		Expect(json.Unmarshal([]byte(body), &history)).To(Succeed())
		Expect(actions(history)).To(Equal([]protocol.Action{protocol.ActionCreated, protocol.ActionStageChanged}))
	})

	t.Run("should throttle escalations with retry after", func(t *testing.T) {
		f.now = utc("2024-01-02T00:00:00Z")
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/escalations"), ""), router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(ContainSubstring(`"action":"escalation_requested"`))

		status, body, resp := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/escalations"), `{"message":"de novo"}`), router)
		Expect(status).To(Equal(http.StatusTooManyRequests))
		Expect(resp.Header.Get("Retry-After")).To(Equal("86400"))
		Expect(body).To(ContainSubstring(`"code":"escalation.too_soon"`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodGet, path("/staleness"), ""), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"lastEscalatedAt":"2024-01-02T00:00:00Z","daysSinceEscalation":0,"count":1,"stalled":true}`))
	})

	t.Run("should report sla at a given instant", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodGet, path("/sla?now=2024-01-08T00:00:00Z"), ""), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"status":"BREACHED","dueDate":"2024-01-06T00:00:00Z","daysRemainingOrOverdue":-2}`))

		status, _, _ = testinfra.ExecuteRequest(newRequest(http.MethodGet, path("/sla?now=tomorrow"), ""), router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	t.Run("should update priority assignee and comments", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPut, path("/priority"), `{"priority":5}`), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"priority":5`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodPut, path("/assignee"), `{"assignedUserRef":"u9"}`), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"assignedUserRef":"u9"`))

		status, _, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/comments"), `{"comment":"ligar"}`), router)
		Expect(status).To(Equal(http.StatusCreated))
	})

	t.Run("should conclude and reopen", func(t *testing.T) {
		status, _, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/reopen"), ""), router)
		Expect(status).To(Equal(http.StatusConflict))

		status, _, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{"targetStage":"concluido"}`), router)
		Expect(status).To(Equal(http.StatusOK))
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/transitions"), `{"targetStage":"em_analise"}`), router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(ContainSubstring(`"code":"protocol.terminal_state"`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodPost, path("/reopen"), `{"comment":"voltou"}`), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"currentStage":"novo"`))
	})

	t.Run("should query and count", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodGet, "/v1/protocols?status=ON_TRACK&moduleType=ATENDIMENTOS_SAUDE", ""), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"total":1`))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodGet, "/v1/protocols?status=LATE", ""), router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("unknown sla status LATE"))

		status, body, _ = testinfra.ExecuteRequest(newRequest(http.MethodGet, "/v1/dashboard", ""), router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"total":1,"open":1,"byStatus":{"ON_TRACK":1,"DUE_SOON":0,"BREACHED":0,"CONCLUDED":0},"byStage":{"novo":1}}`))
	})

	t.Run("should return 400 on malformed id and 404 on unknown id", func(t *testing.T) {
		status, _, _ := testinfra.ExecuteRequest(newRequest(http.MethodGet, "/v1/protocols/abc", ""), router)
		Expect(status).To(Equal(http.StatusBadRequest))

		status, body, _ := testinfra.ExecuteRequest(newRequest(http.MethodGet, "/v1/protocols/1", ""), router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"protocol 1 not found","data":{"resource":"protocol","key":"1"}}`))
	})
}
