package servehttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"protocolo/config"
	"protocolo/session"
	"protocolo/testinfra"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestBuild(t *testing.T) {
	RegisterTestingT(t)

	request := func(method, path, body string) *http.Request {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(session.HeaderTenant, "t1")
		req.Header.Set(session.HeaderActor, "7")
		return req
	}

	for _, backend := range []string{config.BackendMemory, config.BackendGorm} {
		t.Run("should serve protocols on "+backend+" storage", func(t *testing.T) {
			c := config.Default()
			c.Storage.Backend = backend
			c.Database.DriverArgs = filepath.Join(t.TempDir(), "protocolo.db")
			c.Workflows.Preload = []string{"t1"}

			app, err := Build(context.Background(), c)
			Expect(err).To(BeNil())
			defer app.Close()

			status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/", nil), app.Engine)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("protocolo"))

			status, body, _ = testinfra.ExecuteRequest(request(http.MethodGet, "/v1/workflows/VACINACAO", ""), app.Engine)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"defaultSLA":3`))

			status, body, _ = testinfra.ExecuteRequest(request(http.MethodPost, "/v1/protocols",
				`{"moduleType":"VACINACAO","citizenRef":"c1","departmentRef":"saude"}`), app.Engine)
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body).To(ContainSubstring(`"currentStage":"novo"`))

			status, body, _ = testinfra.ExecuteRequest(request(http.MethodGet, "/v1/dashboard", ""), app.Engine)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring(`"total":1`))

			status, _, _ = testinfra.ExecuteRequest(request(http.MethodGet, "/v1/search?q=c1", ""), app.Engine)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	}

	t.Run("should fail on unreadable workflow directory", func(t *testing.T) {
		c := config.Default()
		c.Storage.Backend = config.BackendMemory
		c.Workflows.Source = config.WorkflowSourceDir
		c.Workflows.Dir = filepath.Join(t.TempDir(), "absent")
		c.Workflows.Preload = []string{"t1"}

		_, err := Build(context.Background(), c)
		Expect(err).ToNot(BeNil())
	})
}
