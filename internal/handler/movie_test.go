package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movies-api/internal/config"
	"github.com/iliyamo/movies-api/internal/database"
	"github.com/iliyamo/movies-api/internal/handler"
	"github.com/iliyamo/movies-api/internal/model"
	"github.com/iliyamo/movies-api/internal/queue"
	"github.com/iliyamo/movies-api/internal/repository"
	"github.com/iliyamo/movies-api/internal/router"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.MovieEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.MovieEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type server struct {
	e    *echo.Echo
	repo *repository.MovieRepo
	pub  *recordingPublisher
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := database.Open(config.DBConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "movies.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.DriverSQLite))

	repo := repository.NewMovieRepo(db, zerolog.Nop())
	pub := &recordingPublisher{}
	e := echo.New()
	router.RegisterRoutes(e, repo, zerolog.Nop())
	router.RegisterMovies(e, handler.NewMovieHandler(repo, pub, zerolog.Nop()))
	return &server{e: e, repo: repo, pub: pub}
}

func (s *server) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeMovie(t *testing.T, rec *httptest.ResponseRecorder) model.Movie {
	t.Helper()
	var m model.Movie
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func decodeMovies(t *testing.T, rec *httptest.ResponseRecorder) []model.Movie {
	t.Helper()
	var ms []model.Movie
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	return ms
}

func ids(ms []model.Movie) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func (s *server) create(t *testing.T, title string, year int) model.Movie {
	t.Helper()
	rec := s.do(http.MethodPost, "/movies", fmt.Sprintf(`{"title":%q,"year":%d,"director":"d","genre":"g"}`, title, year))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeMovie(t, rec)
}

func TestCreateAndGet(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/movies", `{"id":500,"year":1979,"title":"Alien","director":"Ridley Scott","genre":"sci-fi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeMovie(t, rec)
	assert.NotEqual(t, int64(500), created.ID)
	require.NotNil(t, created.Likes)
	assert.Equal(t, 0, *created.Likes)

	rec = s.do(http.MethodGet, fmt.Sprintf("/movies/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeMovie(t, rec))
	assert.JSONEq(t,
		fmt.Sprintf(`{"id":%d,"year":1979,"title":"Alien","director":"Ridley Scott","genre":"sci-fi","likes":0}`, created.ID),
		rec.Body.String())

	assert.Equal(t, []queue.EventType{queue.MovieCreated}, s.pub.types())
}

func TestNotFoundIsEmpty404(t *testing.T) {
	s := newServer(t)

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/movies/42", ""},
		{http.MethodPut, "/movies/42", `{"title":"x"}`},
		{http.MethodPatch, "/movies/42/like", ""},
	} {
		rec := s.do(tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method)
		assert.Empty(t, rec.Body.String(), tc.method)
	}
	assert.Empty(t, s.pub.types())
}

func TestMalformedParamsAre400(t *testing.T) {
	s := newServer(t)

	for _, target := range []string{
		"/movies/abc",
		"/movies/year/nineteen",
		"/movies/year",
		"/movies/year?years=1999,abc",
		"/movies/paged?page=-1",
		"/movies/paged?size=-2",
		"/movies/paged?size=x",
		"/movies/paged?page=2147483648&size=2",
		"/movies/paged?page=9223372036854775808&size=2",
		"/movies/paged?page=1&size=18446744073709551615",
		"/movies/paged?page=0&size=9223372036854775808",
	} {
		rec := s.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"error"`, target)
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, "/movies/abc/like", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/movies/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/movies/abc", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/movies", `{"year":"soon"}`).Code)
}

func TestListByYearAndYears(t *testing.T) {
	s := newServer(t)
	a := s.create(t, "A", 1999)
	b := s.create(t, "B", 2001)
	c := s.create(t, "C", 1999)
	s.create(t, "D", 2010)

	rec := s.do(http.MethodGet, "/movies/year/1999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []int64{a.ID, c.ID}, ids(decodeMovies(t, rec)))

	rec = s.do(http.MethodGet, "/movies/year/1900", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = s.do(http.MethodGet, "/movies/year?years=1999&years=2001,1999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []int64{a.ID, b.ID, c.ID}, ids(decodeMovies(t, rec)))

	for _, target := range []string{"/movies/year?years=", "/movies/year?years=,"} {
		rec = s.do(http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), target)
	}
}

func TestPaged(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/movies/paged", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	var created []int64
	for i := 0; i < 5; i++ {
		created = append(created, s.create(t, fmt.Sprintf("M%d", i), 2000+i).ID)
	}

	rec = s.do(http.MethodGet, "/movies/paged?page=0&size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created[0:2], ids(decodeMovies(t, rec)))

	rec = s.do(http.MethodGet, "/movies/paged?page=1&size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created[2:4], ids(decodeMovies(t, rec)))

	rec = s.do(http.MethodGet, "/movies/paged?page=2&size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created[4:5], ids(decodeMovies(t, rec)))

	rec = s.do(http.MethodGet, "/movies/paged?page=3&size=2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	// largest accepted values address an empty page, not a wrapped one
	rec = s.do(http.MethodGet, "/movies/paged?page=2147483647&size=2147483647", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// defaults: page 0, size 1
	rec = s.do(http.MethodGet, "/movies/paged", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created[0:1], ids(decodeMovies(t, rec)))
}

func TestUpdateFullReplace(t *testing.T) {
	s := newServer(t)
	m := s.create(t, "Alien", 1979)

	rec := s.do(http.MethodPut, fmt.Sprintf("/movies/%d", m.ID), `{"id":9999,"year":1986,"title":"Aliens","likes":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeMovie(t, rec)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "Aliens", *got.Title)
	assert.Equal(t, 1986, *got.Year)
	assert.Equal(t, 4, *got.Likes)
	assert.Nil(t, got.Director)
	assert.Nil(t, got.Genre)

	rec = s.do(http.MethodGet, fmt.Sprintf("/movies/%d", m.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"director":null`)

	assert.Equal(t, []queue.EventType{queue.MovieCreated, queue.MovieUpdated}, s.pub.types())
}

func TestLikeConcurrent(t *testing.T) {
	s := newServer(t)
	m := s.create(t, "Alien", 1979)
	target := fmt.Sprintf("/movies/%d/like", m.ID)

	rec := s.do(http.MethodPatch, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *decodeMovie(t, rec).Likes)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, http.StatusOK, s.do(http.MethodPatch, target, "").Code)
		}()
	}
	wg.Wait()

	rec = s.do(http.MethodGet, fmt.Sprintf("/movies/%d", m.ID), "")
	assert.Equal(t, 1+n, *decodeMovie(t, rec).Likes)
}

func TestDeleteIsIdempotentAndDeleteAll(t *testing.T) {
	s := newServer(t)
	m := s.create(t, "Alien", 1979)
	s.create(t, "Heat", 1995)

	target := fmt.Sprintf("/movies/%d", m.ID)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, target, "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, target, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, target, "").Code)

	rec := s.do(http.MethodGet, "/movies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeMovies(t, rec), 1)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/movies/all", "").Code)
	rec = s.do(http.MethodGet, "/movies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	s := newServer(t)
	s.pub.err = errors.New("broker down")

	rec := s.do(http.MethodPost, "/movies", `{"title":"Alien"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, s.pub.types(), 1)
}

type failingStore struct{ handler.MovieStore }

var errStore = errors.New("connection refused")

func (failingStore) GetByID(context.Context, int64) (model.Movie, error) {
	return model.Movie{}, errors.Wrap(errStore, "error executing query")
}
func (failingStore) ListAll(context.Context) ([]model.Movie, error) { return nil, errStore }
func (failingStore) DeleteAll(context.Context) error { return errStore }
func (failingStore) Ping(context.Context) error { return errStore }

func TestStoreFailureIs500(t *testing.T) {
	store := failingStore{}
	var logs bytes.Buffer
	e := echo.New()
	router.RegisterRoutes(e, store, zerolog.New(&logs))
	router.RegisterMovies(e, handler.NewMovieHandler(store, nil, zerolog.Nop()))

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/movies/1"},
		{http.MethodGet, "/movies"},
		{http.MethodDelete, "/movies/all"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tc.target)
		assert.JSONEq(t, `{"error":"database error"}`, rec.Body.String(), tc.target)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, logs.String(), "connection refused")
}

func TestProbes(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}
