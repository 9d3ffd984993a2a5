package worker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Request validation happens before any database access, so these run
// against a router with no pool behind it
func doRequest(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, req)
	return rec
}

func TestCreateTaskRejectsMalformedBody(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/tasks", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTaskRejectsUnknownDef(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/tasks", `{"def":{"ty":"quux"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quux")
}

func TestGetTasksRejectsUnknownStatus(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/tasks?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskRejectsMalformedID(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/tasks/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTaskRejectsMalformedID(t *testing.T) {
	rec := doRequest(t, http.MethodDelete, "/tasks/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterRejectsUnknownMethods(t *testing.T) {
	rec := doRequest(t, http.MethodPut, "/tasks", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
