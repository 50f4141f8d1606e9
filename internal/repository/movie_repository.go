package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movies-api/internal/model"
)

const moviesTable = "movies"

// movieColumns is the fixed correspondence between Movie fields and the
// columns of the movies table.  Column names are never derived from the
// Go field names.
var movieColumns = struct {
	ID, Year, Title, Director, Genre, Likes string
}{
	ID:       "id",
	Year:     "year_released",
	Title:    "title",
	Director: "director",
	Genre:    "genre",
	Likes:    "likes",
}

// selectColumns is the projection every read uses, in scanMovie order.
var selectColumns = []string{
	movieColumns.ID,
	movieColumns.Year,
	movieColumns.Title,
	movieColumns.Director,
	movieColumns.Genre,
	movieColumns.Likes,
}

// MovieRepo encapsulates all database statements related to movies.  It
// is safe for concurrent use; the only shared state is the *sql.DB pool.
type MovieRepo struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	log zerolog.Logger
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.  Both
// supported drivers (mysql, sqlite) use ? placeholders.
func NewMovieRepo(db *sql.DB, log zerolog.Logger) *MovieRepo {
	return &MovieRepo{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log: log.With().Str("repo", "movie").Logger(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(s rowScanner) (model.Movie, error) {
	var m model.Movie
	err := s.Scan(&m.ID, &m.Year, &m.Title, &m.Director, &m.Genre, &m.Likes)
	return m, err
}

// Create inserts m and returns it with the generated id.  A nil Likes is
// stored as 0.  Any ID set on m is ignored.
func (r *MovieRepo) Create(ctx context.Context, m model.Movie) (model.Movie, error) {
	if m.Likes == nil {
		zero := 0
		m.Likes = &zero
	}

	query, args, err := r.sb.
		Insert(moviesTable).
		Columns(movieColumns.Year, movieColumns.Title, movieColumns.Director, movieColumns.Genre, movieColumns.Likes).
		Values(m.Year, m.Title, m.Director, m.Genre, m.Likes).
		ToSql()
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg("Create")

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error executing query")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error reading generated id")
	}
	m.ID = id

	r.log.Debug().Int64("movie_id", id).Msg("created movie")
	return m, nil
}

// GetByID fetches a movie by its id.  It returns ErrMovieNotFound if no
// row matches.
func (r *MovieRepo) GetByID(ctx context.Context, id int64) (model.Movie, error) {
	query, args, err := r.sb.
		Select(selectColumns...).
		From(moviesTable).
		Where(sq.Eq{movieColumns.ID: id}).
		ToSql()
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg("GetByID")

	m, err := scanMovie(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Movie{}, ErrMovieNotFound
		}
		return model.Movie{}, errors.Wrap(err, "error scanning row")
	}
	return m, nil
}

// ListByYear returns all movies released in year, in store order.
func (r *MovieRepo) ListByYear(ctx context.Context, year int) ([]model.Movie, error) {
	return r.list(ctx, "ListByYear", r.sb.
		Select(selectColumns...).
		From(moviesTable).
		Where(sq.Eq{movieColumns.Year: year}))
}

// ListByYears returns all movies whose year is one of years.  An empty
// set matches nothing and does not touch the store.
func (r *MovieRepo) ListByYears(ctx context.Context, years []int) ([]model.Movie, error) {
	if len(years) == 0 {
		return []model.Movie{}, nil
	}
	return r.list(ctx, "ListByYears", r.sb.
		Select(selectColumns...).
		From(moviesTable).
		Where(sq.Eq{movieColumns.Year: years}))
}

// ListPaged returns page number page (zero based) of size movies ordered
// by id.  The ordering is what keeps page boundaries stable across calls.
func (r *MovieRepo) ListPaged(ctx context.Context, page, size uint64) ([]model.Movie, error) {
	return r.list(ctx, "ListPaged", r.sb.
		Select(selectColumns...).
		From(moviesTable).
		OrderBy(movieColumns.ID+" ASC").
		Limit(size).
		Offset(page*size))
}

// ListAll returns every movie in store order.
func (r *MovieRepo) ListAll(ctx context.Context) ([]model.Movie, error) {
	return r.list(ctx, "ListAll", r.sb.
		Select(selectColumns...).
		From(moviesTable))
}

func (r *MovieRepo) list(ctx context.Context, op string, qb sq.SelectBuilder) ([]model.Movie, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg(op)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}
	return out, nil
}

// Update overwrites year, title, director, genre and likes of movie id,
// including nil values, then re-reads the row.  The re-read is a separate
// statement, so it may observe a later write by another caller.  It
// returns ErrMovieNotFound when no row was matched.
func (r *MovieRepo) Update(ctx context.Context, id int64, m model.Movie) (model.Movie, error) {
	query, args, err := r.sb.
		Update(moviesTable).
		Set(movieColumns.Year, m.Year).
		Set(movieColumns.Title, m.Title).
		Set(movieColumns.Director, m.Director).
		Set(movieColumns.Genre, m.Genre).
		Set(movieColumns.Likes, m.Likes).
		Where(sq.Eq{movieColumns.ID: id}).
		ToSql()
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg("Update")

	if err := r.execAffecting(ctx, query, args); err != nil {
		return model.Movie{}, err
	}
	r.log.Debug().Int64("movie_id", id).Msg("updated movie")
	return r.GetByID(ctx, id)
}

// IncrementLikes adds one to the likes of movie id inside a single UPDATE
// so concurrent increments never lose a write.  A NULL counter counts as
// zero.  It returns the re-read row, or ErrMovieNotFound.
func (r *MovieRepo) IncrementLikes(ctx context.Context, id int64) (model.Movie, error) {
	query, args, err := r.sb.
		Update(moviesTable).
		Set(movieColumns.Likes, sq.Expr("COALESCE("+movieColumns.Likes+", 0) + 1")).
		Where(sq.Eq{movieColumns.ID: id}).
		ToSql()
	if err != nil {
		return model.Movie{}, errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg("IncrementLikes")

	if err := r.execAffecting(ctx, query, args); err != nil {
		return model.Movie{}, err
	}
	r.log.Debug().Int64("movie_id", id).Msg("incremented likes")
	return r.GetByID(ctx, id)
}

// execAffecting runs a write and maps zero affected rows to
// ErrMovieNotFound.
func (r *MovieRepo) execAffecting(ctx context.Context, query string, args []any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}
	if n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// Delete removes movie id.  Deleting a missing id is not an error.
func (r *MovieRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.
		Delete(moviesTable).
		Where(sq.Eq{movieColumns.ID: id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}
	r.log.Debug().Int64("movie_id", id).Msg("deleted movie")
	return nil
}

// DeleteAll removes every movie.
func (r *MovieRepo) DeleteAll(ctx context.Context) error {
	query, args, err := r.sb.Delete(moviesTable).ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}
	r.log.Trace().Str("query", query).Msg("DeleteAll")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}
	r.log.Debug().Msg("deleted all movies")
	return nil
}

// Ping reports whether the store answers.
func (r *MovieRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
