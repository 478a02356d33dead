// Package query provides read access to the latest speedtest result.
package query

import (
	"errors"

	"github.com/m-lab/speedtest-statuspage/internal/cache"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/model"
)

// ErrNotReady is returned before the first successful measurement.
var ErrNotReady = errors.New("speedtest result not available yet")

// Service answers queries for the latest result.
type Service struct {
	cache *cache.Cache
}

// New returns a Service reading from c.
func New(c *cache.Cache) *Service {
	return &Service{cache: c}
}

// Current returns a copy of the latest result, or ErrNotReady if there is
// none yet.
func (s *Service) Current() (model.Result, error) {
	r, ok := s.cache.Read()
	if !ok {
		return model.Result{}, ErrNotReady
	}
	return r, nil
}
