package httpapi

import (
	"context"
	"net/http"
)

func (a *API) deleteEntity(w http.ResponseWriter, r *http.Request, id int64, del func(context.Context, int64) error) {
	if err := del(r.Context(), id); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

func (a *API) DeleteTumbleweed(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteTumbleweed)
}

func (a *API) DeleteTumblebase(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteTumblebase)
}

func (a *API) DeleteSubSystem(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteSubSystem)
}

func (a *API) DeleteDataSource(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteDataSource)
}

func (a *API) DeleteCommandType(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteCommandType)
}

func (a *API) DeleteRun(w http.ResponseWriter, r *http.Request, id int64) {
	a.deleteEntity(w, r, id, a.deletion.DeleteRun)
}
