package httpapi

import (
	"net/http"
)

const maxBodyBytes = 1 << 20

type addTumbleweedRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (a *API) AddTumbleweed(w http.ResponseWriter, r *http.Request) {
	var req addTumbleweedRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.topology.CreateTumbleweed(r.Context(), req.Address, req.Name)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type addTumblebaseRequest struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         *int64 `json:"port"`
	CommandRoute string `json:"command_route"`
}

func (a *API) AddTumblebase(w http.ResponseWriter, r *http.Request) {
	var req addTumblebaseRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.topology.CreateTumblebase(r.Context(), req.Address, req.Name, req.Host, req.Port, req.CommandRoute)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type addSubSystemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) AddSubSystem(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	var req addSubSystemRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.topology.CreateSubSystem(r.Context(), tumbleweedID, req.Name, req.Description)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type addDataSourceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ShortKey    string `json:"short_key"`
	DType       string `json:"dtype"`
	Type        string `json:"type"`
}

func (a *API) AddDataSource(w http.ResponseWriter, r *http.Request, subSystemID int64) {
	var req addDataSourceRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.topology.CreateDataSource(r.Context(), subSystemID, req.Name, req.Description, req.ShortKey, req.DType, req.Type)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type addCommandTypeRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (a *API) AddCommandType(w http.ResponseWriter, r *http.Request) {
	var req addCommandTypeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.topology.CreateCommandType(r.Context(), req.Type, req.Description)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

func (a *API) AddTumblebaseToTumbleweed(w http.ResponseWriter, r *http.Request, tumblebaseID, tumbleweedID int64) {
	if err := a.topology.AddTumblebaseToTumbleweed(r.Context(), tumblebaseID, tumbleweedID); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(tumbleweedID))
}

func (a *API) GetTumbleweeds(w http.ResponseWriter, r *http.Request) {
	weeds, err := a.topology.ListTumbleweeds(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(weeds))
	for _, t := range weeds {
		out = append(out, t.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetTumbleweed(w http.ResponseWriter, r *http.Request, id int64) {
	t, err := a.topology.GetTumbleweed(r.Context(), id)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t.ToJSON())
}

func (a *API) GetTumblebases(w http.ResponseWriter, r *http.Request) {
	bases, err := a.topology.ListTumblebases(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(bases))
	for _, b := range bases {
		out = append(out, b.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetTumblebase(w http.ResponseWriter, r *http.Request, id int64) {
	b, err := a.topology.GetTumblebase(r.Context(), id)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b.ToJSON())
}

func (a *API) GetSubSystems(w http.ResponseWriter, r *http.Request, tumbleweedID int64) {
	subs, err := a.topology.ListSubSystems(r.Context(), tumbleweedID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetDataSources(w http.ResponseWriter, r *http.Request, subSystemID int64) {
	sources, err := a.topology.ListDataSources(r.Context(), subSystemID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(sources))
	for _, d := range sources {
		out = append(out, d.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetCommandTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.topology.ListCommandTypes(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(types))
	for _, c := range types {
		out = append(out, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}
