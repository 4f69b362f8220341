package repository // repository defines data access for the movie catalog

import (
    "context"      // context allows query cancellation and timeouts
    "database/sql" // sql provides DB primitives
    "errors"       // errors for sentinel comparisons

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MovieRepo provides methods to work with movies in the database.
type MovieRepo struct {
    db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
    return &MovieRepo{db: db}
}

const movieColumns = `id, title, description, duration_min, genre, language, rating, release_date, status, poster_url, created_at, updated_at`

// scanMovie reads one movies row, converting nullable columns.
func scanMovie(scan func(dest ...any) error) (model.Movie, error) {
    var (
        m      model.Movie
        desc   sql.NullString
        poster sql.NullString
        status string
    )
    if err := scan(&m.ID, &m.Title, &desc, &m.DurationMin, &m.Genre, &m.Language, &m.Rating, &m.ReleaseDate, &status, &poster, &m.CreatedAt, &m.UpdatedAt); err != nil {
        return model.Movie{}, err
    }
    m.Status = model.MovieStatus(status)
    if desc.Valid {
        d := desc.String
        m.Description = &d
    }
    if poster.Valid {
        p := poster.String
        m.PosterURL = &p
    }
    return m, nil
}

// Create inserts a movie record. On success the movie's ID and the
// DB-default timestamps are populated.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
    const q = `INSERT INTO movies (title, description, duration_min, genre, language, rating, release_date, status, poster_url)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        m.Title, m.Description, m.DurationMin, m.Genre, m.Language, m.Rating, m.ReleaseDate.UTC(), string(m.Status), m.PosterURL)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    m.ID = uint64(id)
    const sel = `SELECT created_at, updated_at FROM movies WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, m.ID).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// GetByID retrieves a movie by its ID.  It returns ErrNotFound when
// no matching row exists.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
    const q = `SELECT ` + movieColumns + ` FROM movies WHERE id = ?`
    m, err := scanMovie(func(dest ...any) error {
        return r.db.QueryRowContext(ctx, q, id).Scan(dest...)
    })
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    return &m, nil
}

// List returns movies ordered by release date descending.  When
// status is non-empty only movies in that status are returned.
func (r *MovieRepo) List(ctx context.Context, status model.MovieStatus) ([]model.Movie, error) {
    query := `SELECT ` + movieColumns + ` FROM movies`
    args := []interface{}{}
    if status != "" {
        query += ` WHERE status = ?`
        args = append(args, string(status))
    }
    query += ` ORDER BY release_date DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Movie, 0)
    for rows.Next() {
        m, err := scanMovie(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpdateStatus moves a movie between catalog states.
func (r *MovieRepo) UpdateStatus(ctx context.Context, id uint64, status model.MovieStatus) error {
    const q = `UPDATE movies SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, string(status), id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

// Search finds movies whose title or genre matches the given term,
// case-insensitively.  Used by the public search endpoint.
func (r *MovieRepo) Search(ctx context.Context, term string) ([]model.Movie, error) {
    const q = `SELECT ` + movieColumns + `
               FROM movies
               WHERE title LIKE CONCAT('%', ?, '%') OR genre LIKE CONCAT('%', ?, '%')
               ORDER BY release_date DESC, id DESC
               LIMIT 50`
    rows, err := r.db.QueryContext(ctx, q, term, term)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Movie, 0)
    for rows.Next() {
        m, err := scanMovie(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
