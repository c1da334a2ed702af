package service

import (
	"context"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RelayCommand is the payload POSTed to a tumblebase's command endpoint.
type RelayCommand struct {
	Address string `json:"address"`
	Command string `json:"command"`
}

// RelayClient delivers commands to tumblebases over HTTP. Delivery is a
// single synchronous call; there is no queueing and no automatic retry.
type RelayClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewRelayClient(timeout time.Duration, logger *zap.Logger) *RelayClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RelayClient{
		httpClient: client,
		logger:     logger,
	}
}

// Deliver posts the command payload to the tumblebase. A non-200 status or
// a transport fault is reported as domain.ErrRelayDelivery; the caller has
// already persisted the command and keeps it with transmitted=false.
func (c *RelayClient) Deliver(ctx context.Context, base *domain.Tumblebase, deviceAddress, payload string) error {
	if !base.Host.Valid || !base.Port.Valid || !base.CommandRoute.Valid {
		return fmt.Errorf("%w: tumblebase %d has no command endpoint configured",
			domain.ErrRelayDelivery, base.ID)
	}
	url := fmt.Sprintf("http://%s:%d%s", base.Host.String, base.Port.Int64, base.CommandRoute.String)

	c.logger.Info("Delivering command to tumblebase",
		zap.Int64("tumblebase_id", base.ID),
		zap.String("url", url),
		zap.String("device_address", deviceAddress),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(RelayCommand{Address: deviceAddress, Command: payload}).
		Post(url)
	if err != nil {
		c.logger.Warn("Relay call failed",
			zap.Int64("tumblebase_id", base.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrRelayDelivery, err)
	}
	if resp.StatusCode() != 200 {
		c.logger.Warn("Relay rejected command",
			zap.Int64("tumblebase_id", base.ID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("%w: relay returned status %d", domain.ErrRelayDelivery, resp.StatusCode())
	}
	return nil
}
