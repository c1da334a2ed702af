package httpapi

import (
	"net/http"
)

type sendCommandRequest struct {
	Args string `json:"args"`
}

func (a *API) SendCommand(w http.ResponseWriter, r *http.Request, tumbleweedID, tumblebaseID, commandTypeID int64) {
	var req sendCommandRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	id, err := a.commands.SendCommand(r.Context(), tumbleweedID, tumblebaseID, commandTypeID, req.Args)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type updateCommandRequest struct {
	Response          string `json:"response"`
	ResponseMessageID *int64 `json:"response_message_id"`
}

func (a *API) UpdateCommand(w http.ResponseWriter, r *http.Request, commandID int64) {
	var req updateCommandRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	if err := a.commands.UpdateCommand(r.Context(), commandID, req.Response, req.ResponseMessageID); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(commandID))
}

func (a *API) GetCommands(w http.ResponseWriter, r *http.Request, tumbleweedID, runID int64) {
	cmds, err := a.commands.GetCommandsByTumbleweedAndRun(r.Context(), tumbleweedID, runID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetUnansweredCommands(w http.ResponseWriter, r *http.Request, tumbleweedID, runID int64) {
	cmds, err := a.commands.GetUnansweredCommands(r.Context(), tumbleweedID, runID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}
