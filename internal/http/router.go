package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router uses the standard library http.ServeMux; route parameters are
// parsed out of the path by hand. Unmatched routes answer 404, matched
// routes with the wrong method 405, both with the `{info}` envelope.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.mux.ServeHTTP(w, req)
}

func (rt *Router) handle(pattern, method string, h http.HandlerFunc) {
	rt.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			writeMethodNotAllowed(w)
			return
		}
		h(w, req)
	})
}

// handleID registers a prefix route whose single segment is a numeric id.
func (rt *Router) handleID(prefix, method string, h func(http.ResponseWriter, *http.Request, int64)) {
	rt.handle(prefix, method, func(w http.ResponseWriter, req *http.Request) {
		parts := pathParams(req, prefix, 1)
		if parts == nil {
			writeNotFoundRoute(w)
			return
		}
		id, ok := parseID(parts[0])
		if !ok {
			writeNotFoundRoute(w)
			return
		}
		h(w, req, id)
	})
}

func (rt *Router) handleTwoIDs(prefix, method string, h func(http.ResponseWriter, *http.Request, int64, int64)) {
	rt.handle(prefix, method, func(w http.ResponseWriter, req *http.Request) {
		parts := pathParams(req, prefix, 2)
		if parts == nil {
			writeNotFoundRoute(w)
			return
		}
		first, ok1 := parseID(parts[0])
		second, ok2 := parseID(parts[1])
		if !ok1 || !ok2 {
			writeNotFoundRoute(w)
			return
		}
		h(w, req, first, second)
	})
}

// RegisterRoutes wires the full HTTP surface onto the API handlers.
func (rt *Router) RegisterRoutes(a *API) {
	// topology
	rt.handle("/add-tumbleweed", http.MethodPost, a.AddTumbleweed)
	rt.handle("/add-tumblebase", http.MethodPost, a.AddTumblebase)
	rt.handle("/add-commandType", http.MethodPost, a.AddCommandType)
	rt.handleID("/add-subSystem/", http.MethodPost, a.AddSubSystem)
	rt.handleID("/add-dataSource/", http.MethodPost, a.AddDataSource)
	rt.handleTwoIDs("/add-tumblebase-to-tumbleweed/", http.MethodPost, a.AddTumblebaseToTumbleweed)

	rt.handle("/get-tumbleweeds", http.MethodGet, a.GetTumbleweeds)
	rt.handle("/get-tumblebases", http.MethodGet, a.GetTumblebases)
	rt.handle("/get-commandTypes", http.MethodGet, a.GetCommandTypes)
	rt.handleID("/get-tumbleweed/", http.MethodGet, a.GetTumbleweed)
	rt.handleID("/get-tumblebase/", http.MethodGet, a.GetTumblebase)
	rt.handleID("/get-subSystems/", http.MethodGet, a.GetSubSystems)
	rt.handleID("/get-dataSources/", http.MethodGet, a.GetDataSources)

	// runs
	rt.handleID("/start-run/", http.MethodPost, a.StartRun)
	rt.handleID("/stop-run/", http.MethodPost, a.StopRun)
	rt.handleID("/get-runs/", http.MethodGet, a.GetRuns)
	rt.handleID("/get-active-run/", http.MethodGet, a.GetActiveRun)

	// datapoints
	rt.handle("/add-datapoint/", http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		parts := pathParams(req, "/add-datapoint/", 3)
		if parts == nil {
			writeNotFoundRoute(w)
			return
		}
		a.AddDataPoint(w, req, parts[0], parts[1], parts[2])
	})
	rt.handle("/update-datapoint/", http.MethodPatch, func(w http.ResponseWriter, req *http.Request) {
		parts := pathParams(req, "/update-datapoint/", 2)
		if parts == nil {
			writeNotFoundRoute(w)
			return
		}
		id, ok := parseID(parts[1])
		if !ok {
			writeNotFoundRoute(w)
			return
		}
		a.UpdateDataPoint(w, req, parts[0], id)
	})
	rt.handleTwoIDs("/get-datapoints-by-dataSource-and-run/", http.MethodGet, a.GetDataPointsByDataSourceAndRun)
	rt.handleID("/get-latest-datapoint/", http.MethodGet, a.GetLatestDataPoint)
	rt.handleTwoIDs("/export-datapoints/", http.MethodGet, a.ExportDataPoints)

	// commands
	rt.handle("/send-command/", http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		parts := pathParams(req, "/send-command/", 3)
		if parts == nil {
			writeNotFoundRoute(w)
			return
		}
		weedID, ok1 := parseID(parts[0])
		baseID, ok2 := parseID(parts[1])
		typeID, ok3 := parseID(parts[2])
		if !ok1 || !ok2 || !ok3 {
			writeNotFoundRoute(w)
			return
		}
		a.SendCommand(w, req, weedID, baseID, typeID)
	})
	rt.handleID("/update-command/", http.MethodPatch, a.UpdateCommand)
	rt.handleTwoIDs("/get-commands/", http.MethodGet, a.GetCommands)
	rt.handleTwoIDs("/get-unanswered-commands/", http.MethodGet, a.GetUnansweredCommands)

	// deletion
	rt.handleID("/delete-tumbleweed/", http.MethodDelete, a.DeleteTumbleweed)
	rt.handleID("/delete-tumblebase/", http.MethodDelete, a.DeleteTumblebase)
	rt.handleID("/delete-subSystem/", http.MethodDelete, a.DeleteSubSystem)
	rt.handleID("/delete-dataSource/", http.MethodDelete, a.DeleteDataSource)
	rt.handleID("/delete-commandType/", http.MethodDelete, a.DeleteCommandType)
	rt.handleID("/delete-run/", http.MethodDelete, a.DeleteRun)

	rt.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		writeNotFoundRoute(w)
	})
}
