// Package handler exposes the HTTP handlers of the movies API.  Handlers
// decode path, query and body parameters, call the store and choose the
// status code; they hold no state between requests.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movies-api/internal/middleware"
	"github.com/iliyamo/movies-api/internal/model"
	"github.com/iliyamo/movies-api/internal/queue"
	"github.com/iliyamo/movies-api/internal/repository"
)

// MovieStore is the data-access surface the handlers need.
// *repository.MovieRepo implements it.
type MovieStore interface {
	Create(ctx context.Context, m model.Movie) (model.Movie, error)
	GetByID(ctx context.Context, id int64) (model.Movie, error)
	ListByYear(ctx context.Context, year int) ([]model.Movie, error)
	ListByYears(ctx context.Context, years []int) ([]model.Movie, error)
	ListPaged(ctx context.Context, page, size uint64) ([]model.Movie, error)
	ListAll(ctx context.Context) ([]model.Movie, error)
	Update(ctx context.Context, id int64, m model.Movie) (model.Movie, error)
	IncrementLikes(ctx context.Context, id int64) (model.Movie, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

// EventPublisher receives a MovieEvent after every successful write.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.MovieEvent) error
}

// MovieHandler serves the /movies routes.
type MovieHandler struct {
	Store  MovieStore
	Events EventPublisher
	Log    zerolog.Logger
}

// NewMovieHandler wires a handler.  A nil events publisher drops events.
func NewMovieHandler(store MovieStore, events EventPublisher, log zerolog.Logger) *MovieHandler {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &MovieHandler{Store: store, Events: events, Log: log.With().Str("module", "handler").Logger()}
}

const (
	defaultPage = 0
	defaultSize = 1
)

// Create handles POST /movies.  Any id in the body is ignored.
func (h *MovieHandler) Create(c echo.Context) error {
	var in model.Movie
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in.ID = 0

	m, err := h.Store.Create(c.Request().Context(), in)
	if err != nil {
		return h.storeError(c, err)
	}
	h.publish(c, queue.MovieCreated, m)
	return c.JSON(http.StatusCreated, m)
}

// Get handles GET /movies/:id.  A missing movie is a 404 with no body.
func (h *MovieHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	m, err := h.Store.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListByYear handles GET /movies/year/:year.  No match is 200 with [].
func (h *MovieHandler) ListByYear(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year"})
	}
	movies, err := h.Store.ListByYear(c.Request().Context(), year)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, movies)
}

// ListByYears handles GET /movies/year?years=1999,2001&years=2003.  The
// years parameter is required; an empty value is the empty set.
func (h *MovieHandler) ListByYears(c echo.Context) error {
	raw, ok := c.QueryParams()["years"]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing years"})
	}
	years, err := parseYears(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid years"})
	}
	movies, err := h.Store.ListByYears(c.Request().Context(), years)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, movies)
}

// ListPaged handles GET /movies/paged?page=&size=.  An empty page past
// the first is 204; page 0 is always 200, even when empty.
func (h *MovieHandler) ListPaged(c echo.Context) error {
	page, err := parsePageQuery(c, "page", defaultPage)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	size, err := parsePageQuery(c, "size", defaultSize)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid size"})
	}

	movies, err := h.Store.ListPaged(c.Request().Context(), page, size)
	if err != nil {
		return h.storeError(c, err)
	}
	if len(movies) == 0 && page > 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, movies)
}

// ListAll handles GET /movies.
func (h *MovieHandler) ListAll(c echo.Context) error {
	movies, err := h.Store.ListAll(c.Request().Context())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, movies)
}

// Update handles PUT /movies/:id as a full replace.  The path id wins
// over any id in the body.
func (h *MovieHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var in model.Movie
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	m, err := h.Store.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.storeError(c, err)
	}
	h.publish(c, queue.MovieUpdated, m)
	return c.JSON(http.StatusOK, m)
}

// Like handles PATCH /movies/:id/like.
func (h *MovieHandler) Like(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	m, err := h.Store.IncrementLikes(c.Request().Context(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	h.publish(c, queue.MovieLiked, m)
	return c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /movies/:id.  It is 204 whether or not the movie
// existed.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Store.Delete(c.Request().Context(), id); err != nil {
		return h.storeError(c, err)
	}
	h.publish(c, queue.MovieDeleted, model.Movie{ID: id})
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll handles DELETE /movies/all.
func (h *MovieHandler) DeleteAll(c echo.Context) error {
	if err := h.Store.DeleteAll(c.Request().Context()); err != nil {
		return h.storeError(c, err)
	}
	h.publish(c, queue.MoviesPurged, model.Movie{})
	return c.NoContent(http.StatusNoContent)
}

// storeError maps a store error to a response.  Not-found is an empty
// 404; everything else is logged and answered with a generic 500.
func (h *MovieHandler) storeError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrMovieNotFound) {
		return c.NoContent(http.StatusNotFound)
	}
	h.Log.Error().Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("route", c.Request().Method+" "+c.Path()).
		Msg("store failure")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// publish emits an event for a completed write.  A failure is logged and
// otherwise ignored; the write already happened.
func (h *MovieHandler) publish(c echo.Context, typ queue.EventType, m model.Movie) {
	ev := queue.MovieEvent{
		Type:       typ,
		MovieID:    m.ID,
		Title:      m.Title,
		Likes:      m.Likes,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.Events.Publish(c.Request().Context(), ev); err != nil {
		h.Log.Warn().Err(err).
			Str("type", string(typ)).
			Int64("movie_id", m.ID).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("event publish failed")
	}
}

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// parsePageQuery reads a non-negative 32-bit integer, the range of the
// page and size parameters.  Two such values multiply to at most 2^62, so
// page*size never overflows the offset.
func parsePageQuery(c echo.Context, name string, def uint64) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New(name + " must not be negative")
	}
	return uint64(n), nil
}

// parseYears flattens repeated and comma separated values into a set,
// keeping first-seen order.  Blank items are skipped.
func parseYears(values []string) ([]int, error) {
	seen := make(map[int]struct{})
	years := []int{}
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			y, err := strconv.Atoi(item)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[y]; dup {
				continue
			}
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	return years, nil
}
