package worker

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/database/pubsub"
	"github.com/thrasher-corp/fcs/database/repository/tasks"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/protocol"
	"github.com/thrasher-corp/fcs/task"
	"github.com/thrasher-corp/fcs/types"
)

// Route maps a REST endpoint to its handler
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// RESTLogger logs the requests internally
func RESTLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)

		log.Debugf(log.RESTSys, "%s\t%s\t%s\t%s",
			r.Method,
			r.RequestURI,
			name,
			time.Since(start))
	})
}

// NewRouter returns the task ingestion and inspection multiplexor. It is
// served from worker processes; task rows and their notifications are
// written in one transaction, so the supervisor only hears about rows that
// actually committed
func NewRouter(db *database.Instance) *mux.Router {
	api := &restAPI{db: db}

	routes := []Route{
		{"CreateTask", http.MethodPost, "/tasks", api.createTask},
		{"GetTasks", http.MethodGet, "/tasks", api.getTasks},
		{"GetTask", http.MethodGet, "/tasks/{id}", api.getTask},
		{"DeleteTask", http.MethodDelete, "/tasks/{id}", api.deleteTask},
	}

	router := mux.NewRouter().StrictSlash(true)
	for _, route := range routes {
		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(RESTLogger(route.HandlerFunc, route.Name))
	}
	return router
}

type restAPI struct {
	db *database.Instance
}

type createTaskRequest struct {
	Def         json.RawMessage `json:"def"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
}

type createTaskResponse struct {
	ID types.TaskID `json:"id"`
}

func (a *restAPI) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	def, err := task.UnmarshalDef(req.Def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()

	tx, err := a.db.BeginTx(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	id, err := tasks.Create(ctx, tx, def, time.Now(), req.ScheduledAt)
	if err != nil {
		_ = tx.Rollback()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	err = pubsub.Notify(ctx, tx, protocol.SupervisorChannel,
		protocol.TaskCreated{ID: id, ScheduledAt: req.ScheduledAt})
	if err != nil {
		_ = tx.Rollback()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := tx.Commit(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, createTaskResponse{ID: id})
}

func (a *restAPI) getTasks(w http.ResponseWriter, r *http.Request) {
	var filter tasks.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := types.ParseTaskStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Status = &status
	}

	results, err := tasks.Find(r.Context(), a.db.GetSQL(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []task.Task{}
	}

	writeJSON(w, http.StatusOK, results)
}

func (a *restAPI) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseTaskID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := tasks.FindOne(r.Context(), a.db.GetSQL(), id)
	if errors.Is(err, tasks.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *restAPI) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseTaskID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := tasks.Delete(r.Context(), a.db.GetSQL(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf(log.RESTSys, "Couldn't encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
