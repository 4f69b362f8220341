package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// CatalogHandler serves admin catalog management for movies and
// screens plus the public movie listing and search.
type CatalogHandler struct {
	Movies  *repository.MovieRepo
	Screens *repository.ScreenRepo
}

// NewCatalogHandler constructs a CatalogHandler and panics if any
// dependency is nil.
func NewCatalogHandler(movies *repository.MovieRepo, screens *repository.ScreenRepo) *CatalogHandler {
	if movies == nil || screens == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Movies: movies, Screens: screens}
}

type movieView struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DurationMin uint32  `json:"duration_min"`
	Genre       string  `json:"genre"`
	Language    string  `json:"language"`
	Rating      string  `json:"rating"`
	ReleaseDate string  `json:"release_date"`
	Status      string  `json:"status"`
	PosterURL   *string `json:"poster_url,omitempty"`
}

func movieJSON(m *model.Movie) movieView {
	return movieView{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		DurationMin: m.DurationMin,
		Genre:       m.Genre,
		Language:    m.Language,
		Rating:      m.Rating,
		ReleaseDate: m.ReleaseDate.Format("2006-01-02"),
		Status:      string(m.Status),
		PosterURL:   m.PosterURL,
	}
}

type screenView struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	SeatRows    uint32 `json:"seat_rows"`
	SeatsPerRow uint32 `json:"seats_per_row"`
	TotalSeats  uint32 `json:"total_seats"`
	IsActive    bool   `json:"is_active"`
}

func screenJSON(s *model.Screen) screenView {
	return screenView{
		ID:          s.ID,
		Name:        s.Name,
		SeatRows:    s.SeatRows,
		SeatsPerRow: s.SeatsPerRow,
		TotalSeats:  s.TotalSeats(),
		IsActive:    s.IsActive,
	}
}

// CreateMovie handles POST /v1/movies (admin).
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		DurationMin uint32 `json:"duration_min"`
		Genre       string `json:"genre"`
		Language    string `json:"language"`
		Rating      string `json:"rating"`
		ReleaseDate string `json:"release_date"` // YYYY-MM-DD
		Status      string `json:"status"`
		PosterURL   string `json:"poster_url"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		return badRequest(c, "title is required")
	}
	if body.DurationMin == 0 || body.DurationMin > 600 {
		return badRequest(c, "duration_min must be between 1 and 600")
	}
	releaseDate, err := time.Parse("2006-01-02", body.ReleaseDate)
	if err != nil {
		return badRequest(c, "invalid release_date, expected YYYY-MM-DD")
	}
	status := model.MovieComingSoon
	if s := strings.ToUpper(strings.TrimSpace(body.Status)); s != "" {
		switch model.MovieStatus(s) {
		case model.MovieComingSoon, model.MovieNowShowing, model.MovieEnded:
			status = model.MovieStatus(s)
		default:
			return badRequest(c, "invalid status")
		}
	}

	m := &model.Movie{
		Title:       body.Title,
		DurationMin: body.DurationMin,
		Genre:       strings.TrimSpace(body.Genre),
		Language:    strings.TrimSpace(body.Language),
		Rating:      strings.TrimSpace(body.Rating),
		ReleaseDate: releaseDate,
		Status:      status,
	}
	if d := strings.TrimSpace(body.Description); d != "" {
		m.Description = &d
	}
	if p := strings.TrimSpace(body.PosterURL); p != "" {
		m.PosterURL = &p
	}
	if err := h.Movies.Create(c.Request().Context(), m); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, movieJSON(m))
}

// ListMovies handles GET /v1/movies (public). ?search= matches title
// or genre; ?status= filters by catalog state; otherwise everything
// is returned newest release first.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		movies []model.Movie
		err    error
	)
	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		movies, err = h.Movies.Search(ctx, term)
	} else {
		status := model.MovieStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
		switch status {
		case "", model.MovieComingSoon, model.MovieNowShowing, model.MovieEnded:
		default:
			return badRequest(c, "invalid status filter")
		}
		movies, err = h.Movies.List(ctx, status)
	}
	if err != nil {
		return internalError(c)
	}
	out := make([]movieView, 0, len(movies))
	for i := range movies {
		out = append(out, movieJSON(&movies[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// CreateScreen handles POST /v1/screens (admin). The seat grid is
// generated here: seat_rows rows labelled A, B, ... with
// seats_per_row seats each. row_types upgrades whole rows, e.g.
// {"A": "VIP", "B": "PREMIUM"}; unlisted rows stay REGULAR. Each
// seat's price multiplier comes from its type.
func (h *CatalogHandler) CreateScreen(c echo.Context) error {
	var body struct {
		Name        string            `json:"name"`
		SeatRows    uint32            `json:"seat_rows"`
		SeatsPerRow uint32            `json:"seats_per_row"`
		RowTypes    map[string]string `json:"row_types"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return badRequest(c, "name is required")
	}
	if body.SeatRows == 0 || body.SeatRows > 40 {
		return badRequest(c, "seat_rows must be between 1 and 40")
	}
	if body.SeatsPerRow == 0 || body.SeatsPerRow > 60 {
		return badRequest(c, "seats_per_row must be between 1 and 60")
	}

	rowTypes := make(map[string]model.SeatType, len(body.RowTypes))
	for rawLabel, rawType := range body.RowTypes {
		label := normalizeRowLabel(rawLabel)
		idx, ok := rowLabelToIndex(label)
		if !ok || idx >= int(body.SeatRows) {
			return badRequest(c, fmt.Sprintf("row_types references row %q outside the grid", rawLabel))
		}
		typ := model.SeatType(strings.ToUpper(strings.TrimSpace(rawType)))
		if !typ.Valid() {
			return badRequest(c, fmt.Sprintf("invalid seat type %q for row %q", rawType, rawLabel))
		}
		rowTypes[label] = typ
	}

	seats := make([]model.Seat, 0, body.SeatRows*body.SeatsPerRow)
	for r := 0; r < int(body.SeatRows); r++ {
		label := indexToRowLabel(r)
		typ := model.SeatRegular
		if t, ok := rowTypes[label]; ok {
			typ = t
		}
		for n := uint32(1); n <= body.SeatsPerRow; n++ {
			seats = append(seats, model.Seat{
				RowLabel:        label,
				SeatNumber:      n,
				SeatType:        typ,
				PriceMultiplier: typ.DefaultMultiplier(),
				IsActive:        true,
			})
		}
	}

	screen := &model.Screen{
		Name:        body.Name,
		SeatRows:    body.SeatRows,
		SeatsPerRow: body.SeatsPerRow,
		IsActive:    true,
	}
	if err := h.Screens.CreateWithSeats(c.Request().Context(), screen, seats); err != nil {
		// MySQL duplicate key on the unique screen name.
		if strings.Contains(err.Error(), "1062") {
			return c.JSON(http.StatusConflict, errorBody{ErrorCode: "CONFLICT", Message: "screen name already exists"})
		}
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"screen":     screenJSON(screen),
		"seat_count": len(seats),
	})
}

// ListScreens handles GET /v1/screens (admin).
func (h *CatalogHandler) ListScreens(c echo.Context) error {
	screens, err := h.Screens.List(c.Request().Context())
	if err != nil {
		return internalError(c)
	}
	out := make([]screenView, 0, len(screens))
	for i := range screens {
		out = append(out, screenJSON(&screens[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}
