package httpapi

import (
	"net/http"
)

type startRunRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) StartRun(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	var req startRunRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.runs.StartRun(r.Context(), tumbleweedID, req.Name, req.Description)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

func (a *API) StopRun(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	id, err := a.runs.StopRun(r.Context(), tumbleweedID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

func (a *API) GetRuns(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	runs, err := a.runs.GetRuns(r.Context(), tumbleweedID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetActiveRun(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	run, err := a.runs.GetActiveRun(r.Context(), tumbleweedID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, run.ToJSON())
}
