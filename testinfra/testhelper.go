package testinfra

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"protocolo/session"

	"github.com/fundwit/go-commons/types"
)

func ExecuteRequest(req *http.Request, engine http.Handler) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := ioutil.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, string(body), resp
}

// BuildSession build a staff session of tenant
func BuildSession(tenant string, actorID types.ID) *session.Session {
	return &session.Session{TenantID: tenant, Identity: session.Identity{ID: actorID, Name: "user" + actorID.String()}}
}
