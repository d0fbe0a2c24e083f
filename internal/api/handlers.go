package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/lueurxax/filmosphere/internal/film"
	"github.com/lueurxax/filmosphere/internal/recommend"
)

// RecommendationRequest is the JSON payload for a recommendation call.
type RecommendationRequest struct {
	UserMessage string `json:"user_message"`
}

// UpstreamFailureResponse is returned with 502 when the LLM layer fails. A
// moderation block is NOT this shape: blocks come back as 200 with blocked
// set, because blocking is a policy outcome rather than an infrastructure one.
type UpstreamFailureResponse struct {
	Error      string `json:"error"`
	RawText    string `json:"raw_text,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (s *Server) postRecommendation(recommender Recommender) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{errKey: msgUnauthorized})

			return
		}

		var req RecommendationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{errKey: msgInvalidBody})

			return
		}

		message := strings.TrimSpace(req.UserMessage)
		if message == "" || utf8.RuneCountInString(message) > maxMessageRunes {
			c.JSON(http.StatusBadRequest, gin.H{errKey: msgBlankMessage})

			return
		}

		result, err := recommender.Recommend(c.Request.Context(), userID, message)
		if err != nil {
			var upstream *recommend.UpstreamError
			if errors.As(err, &upstream) {
				c.JSON(http.StatusBadGateway, UpstreamFailureResponse{
					Error:      upstream.Message,
					RawText:    upstream.RawText,
					StatusCode: upstream.Status,
				})

				return
			}

			s.logger.Error().Err(err).Msg("recommendation failed")
			c.JSON(http.StatusInternalServerError, gin.H{errKey: msgInternalError})

			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) getFilm(films FilmFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		imdbID := c.Param("imdb_id")

		payload, err := films.Fetch(c.Request.Context(), imdbID)
		if err != nil {
			switch {
			case errors.Is(err, film.ErrInvalidID):
				c.JSON(http.StatusBadRequest, gin.H{errKey: "invalid imdb id"})
			case errors.Is(err, film.ErrFilmNotFound):
				c.JSON(http.StatusNotFound, gin.H{errKey: "film not found"})
			default:
				s.logger.Error().Err(err).Str("imdb_id", imdbID).Msg("film fetch failed")
				c.JSON(http.StatusInternalServerError, gin.H{errKey: msgInternalError})
			}

			return
		}

		// The payload is already encoded; a cached hit must pass through
		// byte for byte.
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
	}
}

const defaultTrailerGenre = "Action"

func (s *Server) getTrailers(feed func(ctx context.Context) []json.RawMessage) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"results": feed(c.Request.Context())})
	}
}

func (s *Server) getTrailersByGenre(trailers TrailerFeed) gin.HandlerFunc {
	return func(c *gin.Context) {
		genre := strings.TrimSpace(c.Query("genres"))
		if genre == "" {
			genre = defaultTrailerGenre
		}

		c.JSON(http.StatusOK, gin.H{"results": trailers.TrailersByGenre(c.Request.Context(), genre)})
	}
}

func (s *Server) getSearch(search Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{errKey: "q is required"})

			return
		}

		c.JSON(http.StatusOK, gin.H{"results": search.Search(c.Request.Context(), query)})
	}
}
