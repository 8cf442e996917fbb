// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var errRouterExited = errors.New("message router exited")

// MessageRunner runs the fine-tuning message router until ctx ends.
type MessageRunner interface {
	RunMessaging(ctx context.Context) error
}

// MessagingService supervises the watermill router that carries
// fine-tuning jobs, worker results and model sync between nodes.
//
// A watermill router cannot be run again once it has stopped, so any exit
// other than cancellation is logged and reported as suture.ErrDoNotRestart. The
// node keeps serving queries; fine-tuning rounds then fail with a quorum
// timeout until the process is restarted.
type MessagingService struct {
	runner MessageRunner
	logger zerolog.Logger
	name   string
}

// NewMessagingService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMessagingService(runner MessageRunner, logger zerolog.Logger) *MessagingService {
	return &MessagingService{
		runner: runner,
		logger: logger.With().Str("service", "messaging").Logger(),
		name:   "messaging-router",
	}
}

// Serve implements suture.Service.
func (s *MessagingService) Serve(ctx context.Context) error {
	s.logger.Info().Msg("message router starting")
	err := s.runner.RunMessaging(ctx)
	if ctx.Err() != nil {
		s.logger.Info().Msg("message router stopped")
		return ctx.Err()
	}
	if err == nil {
		err = errRouterExited
	}
	s.logger.Error().Err(err).Msg("message router stopped unexpectedly, fine-tuning disabled until restart")
	return suture.ErrDoNotRestart
}

// String returns the service name for logging.
func (s *MessagingService) String() string {
	return s.name
}
