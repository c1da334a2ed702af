package service

import (
	"context"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/repository"

	"go.uber.org/zap"
)

// CommandService persists commands and performs the synchronous outbound
// delivery call to the relay. The command row is durable before delivery
// is attempted; a failed delivery leaves it with transmitted=false for the
// caller to re-issue.
type CommandService struct {
	repos  repository.Repos
	relay  *RelayClient
	logger *zap.Logger
}

func NewCommandService(repos repository.Repos, relay *RelayClient, logger *zap.Logger) *CommandService {
	return &CommandService{repos: repos, relay: relay, logger: logger}
}

// SendCommand checks its preconditions in a fixed order: device with a
// usable address, active run, relay, command type. On delivery failure the
// persisted command id is still returned alongside the error.
func (s *CommandService) SendCommand(ctx context.Context, tumbleweedID, tumblebaseID, commandTypeID int64, args string) (int64, error) {
	weed, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID)
	if err != nil {
		return 0, err
	}
	if weed.Address == "" {
		return 0, fmt.Errorf("%w: tumbleweed %d has no address", domain.ErrInvalidFormat, tumbleweedID)
	}
	run, err := s.repos.Runs.GetActive(ctx, tumbleweedID)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotActive, tumbleweedID)
	}
	base, err := s.repos.Tumblebases.Get(ctx, tumblebaseID)
	if err != nil {
		return 0, err
	}
	cmdType, err := s.repos.CommandTypes.Get(ctx, commandTypeID)
	if err != nil {
		return 0, err
	}

	cmd := &domain.Command{
		CommandTypeID: commandTypeID,
		SenderBaseID:  tumblebaseID,
		TumbleweedID:  tumbleweedID,
		RunID:         run.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if args != "" {
		cmd.Args.String, cmd.Args.Valid = args, true
	}
	id, err := s.repos.Commands.Create(ctx, cmd)
	if err != nil {
		return 0, err
	}

	payload := cmdType.Type
	if args != "" {
		payload = payload + "+" + args
	}
	if err := s.relay.Deliver(ctx, base, weed.Address, payload); err != nil {
		// command stays persisted with transmitted=false
		return id, err
	}

	if err := s.repos.Commands.SetTransmitted(ctx, id, true); err != nil {
		return id, err
	}
	s.logger.Info("Command transmitted",
		zap.Int64("command_id", id),
		zap.Int64("tumbleweed_id", tumbleweedID),
		zap.Int64("tumblebase_id", tumblebaseID),
	)
	return id, nil
}

// UpdateCommand records the asynchronous device response relayed back
// after transmission.
func (s *CommandService) UpdateCommand(ctx context.Context, id int64, response string, responseMessageID *int64) error {
	return s.repos.Commands.UpdateResponse(ctx, id, response, responseMessageID, time.Now().UTC())
}

func (s *CommandService) GetCommandsByTumbleweedAndRun(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	if err := s.checkRefs(ctx, tumbleweedID, runID); err != nil {
		return nil, err
	}
	return s.repos.Commands.ListByTumbleweedAndRun(ctx, tumbleweedID, runID)
}

func (s *CommandService) GetUnansweredCommands(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	if err := s.checkRefs(ctx, tumbleweedID, runID); err != nil {
		return nil, err
	}
	return s.repos.Commands.ListUnanswered(ctx, tumbleweedID, runID)
}

func (s *CommandService) checkRefs(ctx context.Context, tumbleweedID, runID int64) error {
	if _, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID); err != nil {
		return err
	}
	if _, err := s.repos.Runs.Get(ctx, runID); err != nil {
		return err
	}
	return nil
}
