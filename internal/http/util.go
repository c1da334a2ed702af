package httpapi

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// writeError maps domain errors to 400 with their message; anything else
// is logged and masked as a generic 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if domain.IsDomainError(err) {
		writeJSON(w, http.StatusBadRequest, Info(err.Error()))
		return
	}
	logger.Error("Internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Info(internalErrorMessage))
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, Info("Method not allowed."))
}

func writeNotFoundRoute(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, Info("Not found."))
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathParams strips the route prefix and splits the remainder into
// segments; empty trailing segments are rejected by returning nil.
func pathParams(r *http.Request, prefix string, count int) []string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != count {
		return nil
	}
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	return parts
}

// callerHost extracts the network origin of the request for auto-created
// tumblebases.
func callerHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
