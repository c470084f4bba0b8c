// Package microservice hosts the sub-breed lookup service over HTTP.
package microservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/illmade-knight/go-dogbreeds/pkg/breeds"
	"github.com/rs/zerolog"
)

// StatsReporter is implemented by fetchers that count their delegations,
// such as *breeds.CachingFetcher.
type StatsReporter interface {
	CallsMade() int64
	Len() int
}

// BreedsServer serves sub-breed lookups from a breeds.Fetcher.
type BreedsServer struct {
	*BaseServer
	fetcher breeds.Fetcher
}

// NewBreedsServer wires the lookup routes onto a BaseServer. When fetcher
// reports stats, /healthz includes them.
func NewBreedsServer(fetcher breeds.Fetcher, logger zerolog.Logger, httpPort string) (*BreedsServer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher must not be nil: %w", breeds.ErrInvalidArgument)
	}
	s := &BreedsServer{fetcher: fetcher}
	s.BaseServer = NewBaseServer(logger, httpPort, s.checkHealth)
	s.Mux().HandleFunc("GET /breeds/{breed}/sub-breeds", s.handleSubBreeds)
	s.Mux().HandleFunc("GET /stats", s.handleStats)
	return s, nil
}

func (s *BreedsServer) checkHealth(_ context.Context) (map[string]interface{}, error) {
	reporter, ok := s.fetcher.(StatsReporter)
	if !ok {
		return nil, nil
	}
	return map[string]interface{}{
		"callsMade":    reporter.CallsMade(),
		"cachedBreeds": reporter.Len(),
	}, nil
}

type subBreedsResponse struct {
	Breed     string   `json:"breed"`
	SubBreeds []string `json:"subBreeds"`
}

type statsResponse struct {
	CallsMade    int64 `json:"callsMade"`
	CachedBreeds int   `json:"cachedBreeds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *BreedsServer) handleSubBreeds(w http.ResponseWriter, r *http.Request) {
	breed := r.PathValue("breed")
	names, err := s.fetcher.GetSubBreeds(r.Context(), breed)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, breeds.ErrNotFound) {
			status = http.StatusNotFound
		}
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("breed", breed).Msg("Lookup failed.")
		writeJSON(w, r, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, subBreedsResponse{Breed: breed, SubBreeds: names})
}

func (s *BreedsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	reporter, ok := s.fetcher.(StatsReporter)
	if !ok {
		writeJSON(w, r, http.StatusNotImplemented, errorResponse{Error: "fetcher does not report stats"})
		return
	}
	writeJSON(w, r, http.StatusOK, statsResponse{CallsMade: reporter.CallsMade(), CachedBreeds: reporter.Len()})
}
