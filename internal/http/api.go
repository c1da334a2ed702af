package httpapi

import (
	"tumbleweb-data/internal/service"

	"go.uber.org/zap"
)

// API bundles the handlers over the business services. Routes are
// registered through Router.RegisterRoutes.
type API struct {
	topology *service.TopologyService
	runs     *service.RunService
	ingest   *service.IngestService
	commands *service.CommandService
	deletion *service.DeletionService
	logger   *zap.Logger
}

func NewAPI(
	topology *service.TopologyService,
	runs *service.RunService,
	ingest *service.IngestService,
	commands *service.CommandService,
	deletion *service.DeletionService,
	logger *zap.Logger,
) *API {
	return &API{
		topology: topology,
		runs:     runs,
		ingest:   ingest,
		commands: commands,
		deletion: deletion,
		logger:   logger,
	}
}
