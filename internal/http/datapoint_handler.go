package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/service"
)

// Byte and image payloads make datapoint bodies much larger than the
// topology endpoints allow.
const maxDataPointBytes = 32 << 20

type addDataPointRequest struct {
	Data            json.RawMessage `json:"data"`
	Packets         int             `json:"packets"`
	PacketsReceived int             `json:"packets_received"`
	MessageID       int64           `json:"message_id"`
	Size            *int64          `json:"size"`
	ReceivingStart  *time.Time      `json:"receiving_start"`
	ReceivingDone   *time.Time      `json:"receiving_done"`
	ImageFormat     string          `json:"image_format"`
}

func (a *API) AddDataPoint(w http.ResponseWriter, r *http.Request, deviceAddress, relayAddress, shortKey string) {
	var req addDataPointRequest
	if err := readBodyJSON(r, maxDataPointBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	sample := service.Sample{
		Data:            req.Data,
		Packets:         req.Packets,
		PacketsReceived: req.PacketsReceived,
		MessageID:       req.MessageID,
		Size:            req.Size,
		ReceivingStart:  req.ReceivingStart,
		ReceivingDone:   req.ReceivingDone,
		ImageFormat:     req.ImageFormat,
	}
	id, err := a.ingest.Ingest(r.Context(), deviceAddress, relayAddress, shortKey, sample, callerHost(r))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

type updateDataPointRequest struct {
	PacketsReceived *int            `json:"packets_received"`
	ReceivingDone   *time.Time      `json:"receiving_done"`
	Size            *int64          `json:"size"`
	Data            json.RawMessage `json:"data"`
}

func (a *API) UpdateDataPoint(w http.ResponseWriter, r *http.Request, dtypeRaw string, id int64) {
	dtype, err := domain.ParseDType(dtypeRaw)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	var req updateDataPointRequest
	if err := readBodyJSON(r, maxDataPointBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Info("Invalid request body."))
		return
	}
	patch := service.SamplePatch{
		PacketsReceived: req.PacketsReceived,
		ReceivingDone:   req.ReceivingDone,
		Size:            req.Size,
		Data:            req.Data,
	}
	if err := a.ingest.UpdateDataPoint(r.Context(), dtype, id, patch); err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Info(id))
}

func (a *API) GetDataPointsByDataSourceAndRun(w http.ResponseWriter, r *http.Request, dataSourceID, runID int64) {
	points, err := a.ingest.GetDataPointsByDataSourceAndRun(r.Context(), dataSourceID, runID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		out = append(out, p.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetLatestDataPoint(w http.ResponseWriter, r *http.Request, dataSourceID int64) {
	latest, err := a.ingest.GetLatestDataPoint(r.Context(), dataSourceID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}
