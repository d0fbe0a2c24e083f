// Package api is the inbound HTTP surface: recommendations, film payloads
// and title search. Handlers are transport-thin; policy lives in the
// orchestrator and the aggregator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/recommend"
	"github.com/lueurxax/filmosphere/internal/sources"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second

	userIDHeader     = "X-User-ID"
	maxMessageRunes  = 2000
	errKey           = "error"
	msgUnauthorized  = "authentication required"
	msgInvalidBody   = "invalid JSON body"
	msgBlankMessage  = "user_message must be 1..2000 characters and not blank"
	msgInternalError = "internal error"
)

// FilmFetcher returns the merged payload for one IMDb id.
type FilmFetcher interface {
	Fetch(ctx context.Context, imdbID string) (json.RawMessage, error)
}

// Searcher resolves a free-text query to normalized title matches.
type Searcher interface {
	Search(ctx context.Context, query string) []sources.SearchResult
}

// Recommender runs the recommendation pipeline for one user message.
type Recommender interface {
	Recommend(ctx context.Context, userID, message string) (*recommend.Result, error)
}

// TrailerFeed serves the provider's public trailer feeds. Implementations
// degrade failures to empty lists, so the handlers never error.
type TrailerFeed interface {
	LatestTrailers(ctx context.Context) []json.RawMessage
	TrendingTrailers(ctx context.Context) []json.RawMessage
	TrailersByGenre(ctx context.Context, genre string) []json.RawMessage
}

type Server struct {
	engine *gin.Engine
	port   int
	logger *zerolog.Logger
}

func NewServer(films FilmFetcher, search Searcher, recommender Recommender, trailers TrailerFeed, port int, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{engine: engine, port: port, logger: logger}

	api := engine.Group("/api")
	api.POST("/recommendations", s.postRecommendation(recommender))
	api.GET("/films/:imdb_id", s.getFilm(films))
	api.GET("/search", s.getSearch(search))
	api.GET("/trailers/latest", s.getTrailers(trailers.LatestTrailers))
	api.GET("/trailers/trending", s.getTrailers(trailers.TrendingTrailers))
	api.GET("/trailers", s.getTrailersByGenre(trailers))

	return s
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler exposes the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
