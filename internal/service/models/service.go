// Package models serves the provider's model list through a cache.
package models

import (
	"context"
	"fmt"

	"github.com/simplegpt/backend/internal/apperr"
	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/pkg/logx"
)

// Service lists models, consulting the cache first.
type Service struct {
	lister ai.ModelLister
	cache  Cache
}

// NewService wires lister behind cache. A nil cache disables caching.
func NewService(lister ai.ModelLister, cache Cache) *Service {
	return &Service{lister: lister, cache: cache}
}

// List returns the model ids. Cache failures are logged and bypassed.
func (s *Service) List(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		models, ok, err := s.cache.Get(ctx)
		if err != nil {
			logx.Warn().Err(err).Msg("models: cache read failed")
		} else if ok {
			return models, nil
		}
	}

	models, err := s.lister.ListModels(ctx)
	if err != nil {
		return nil, apperr.APIError.Wrap(fmt.Errorf("list models: %w", err))
	}
	if models == nil {
		models = []string{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, models); err != nil {
			logx.Warn().Err(err).Msg("models: cache write failed")
		}
	}
	return models, nil
}
