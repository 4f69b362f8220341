package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// ShowHandler serves show scheduling for admins and the public
// browse endpoints: show details, the live seat map and occupancy.
type ShowHandler struct {
	Engine    *engine.Engine
	Shows     *repository.ShowRepo
	Movies    *repository.MovieRepo
	Screens   *repository.ScreenRepo
	ShowSeats *repository.ShowSeatRepo
	Bookings  repository.BookingStore
}

// NewShowHandler constructs a ShowHandler and panics if any
// dependency is nil.
func NewShowHandler(eng *engine.Engine, shows *repository.ShowRepo, movies *repository.MovieRepo, screens *repository.ScreenRepo, showSeats *repository.ShowSeatRepo, bookings repository.BookingStore) *ShowHandler {
	if eng == nil || shows == nil || movies == nil || screens == nil || showSeats == nil || bookings == nil {
		panic("nil dependency passed to NewShowHandler")
	}
	return &ShowHandler{Engine: eng, Shows: shows, Movies: movies, Screens: screens, ShowSeats: showSeats, Bookings: bookings}
}

type showView struct {
	ID             uint64    `json:"id"`
	MovieID        uint64    `json:"movie_id"`
	ScreenID       uint64    `json:"screen_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	BasePriceCents uint32    `json:"base_price_cents"`
	Status         string    `json:"status"`
}

func showJSON(s *model.Show) showView {
	return showView{
		ID:             s.ID,
		MovieID:        s.MovieID,
		ScreenID:       s.ScreenID,
		StartsAt:       s.StartsAt,
		EndsAt:         s.EndsAt,
		BasePriceCents: s.BasePriceCents,
		Status:         string(s.Status),
	}
}

type showSeatView struct {
	ID          uint64     `json:"id"`
	SeatID      uint64     `json:"seat_id"`
	Status      string     `json:"status"`
	PriceCents  uint32     `json:"price_cents"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Create handles POST /v1/shows (admin). Scheduling a show fans out
// one show_seat row per physical seat with the price baked in:
// base price times the seat's multiplier. Inactive seats become
// MAINTENANCE rows so the seat map stays rectangular without ever
// selling them.
func (h *ShowHandler) Create(c echo.Context) error {
	var body struct {
		MovieID        uint64 `json:"movie_id"`
		ScreenID       uint64 `json:"screen_id"`
		StartsAt       string `json:"starts_at"`        // RFC3339
		EndsAt         string `json:"ends_at"`          // optional, derived from the movie runtime when empty
		BasePriceCents uint32 `json:"base_price_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.MovieID == 0 || body.ScreenID == 0 {
		return badRequest(c, "movie_id and screen_id are required")
	}
	if body.BasePriceCents == 0 {
		return badRequest(c, "base_price_cents must be positive")
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return badRequest(c, "invalid starts_at format")
	}
	startsAt = startsAt.UTC()
	now := time.Now().UTC()
	if !startsAt.After(now) {
		return badRequest(c, "starts_at must be in the future")
	}

	ctx := c.Request().Context()
	movie, err := h.Movies.GetByID(ctx, body.MovieID)
	if err != nil {
		return writeError(c, err)
	}
	screen, err := h.Screens.GetByID(ctx, body.ScreenID)
	if err != nil {
		return writeError(c, err)
	}
	if !screen.IsActive {
		return c.JSON(http.StatusConflict, errorBody{ErrorCode: "CONFLICT", Message: "screen is not active"})
	}

	endsAt := startsAt.Add(time.Duration(movie.DurationMin) * time.Minute)
	if body.EndsAt != "" {
		endsAt, err = time.Parse(time.RFC3339, body.EndsAt)
		if err != nil {
			return badRequest(c, "invalid ends_at format")
		}
		endsAt = endsAt.UTC()
	}
	if !endsAt.After(startsAt) {
		return badRequest(c, "ends_at must be after starts_at")
	}

	overlap, err := h.Shows.HasOverlap(ctx, body.ScreenID, startsAt, endsAt)
	if err != nil {
		return internalError(c)
	}
	if overlap {
		return c.JSON(http.StatusConflict, errorBody{
			ErrorCode: "SHOW_TIME_CONFLICT",
			Message:   "show time overlaps an existing show on this screen",
		})
	}

	seats, err := h.Screens.SeatsByScreen(ctx, body.ScreenID)
	if err != nil {
		return internalError(c)
	}
	if len(seats) == 0 {
		return c.JSON(http.StatusConflict, errorBody{ErrorCode: "CONFLICT", Message: "screen has no seats"})
	}

	show := &model.Show{
		MovieID:        body.MovieID,
		ScreenID:       body.ScreenID,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		BasePriceCents: body.BasePriceCents,
		Status:         model.ShowScheduled,
	}

	// Show and seat fan-out commit together: a show must never be
	// visible without its full seat map.
	tx, err := h.Shows.DB().BeginTx(ctx, nil)
	if err != nil {
		return internalError(c)
	}
	defer tx.Rollback()

	if err := h.Shows.CreateTx(ctx, tx, show); err != nil {
		return internalError(c)
	}
	ss := make([]model.ShowSeat, 0, len(seats))
	for _, seat := range seats {
		multiplier := seat.PriceMultiplier
		if multiplier <= 0 {
			multiplier = seat.SeatType.DefaultMultiplier()
		}
		status := model.SeatAvailable
		if !seat.IsActive {
			status = model.SeatMaintenance
		}
		ss = append(ss, model.ShowSeat{
			ShowID:     show.ID,
			SeatID:     seat.ID,
			Status:     status,
			PriceCents: uint32(math.Round(float64(body.BasePriceCents) * multiplier)),
		})
	}
	if err := h.ShowSeats.CreateBulkTx(ctx, tx, ss); err != nil {
		return internalError(c)
	}
	if err := tx.Commit(); err != nil {
		return internalError(c)
	}

	// First show for a COMING_SOON movie moves it to NOW_SHOWING.
	if movie.Status == model.MovieComingSoon {
		_ = h.Movies.UpdateStatus(ctx, movie.ID, model.MovieNowShowing)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"show":       showJSON(show),
		"seat_count": len(ss),
	})
}

// Cancel handles POST /v1/shows/:id/cancel (admin). Only shows that
// have not started can be cancelled; the engine rejects new bookings
// on a cancelled show from that point on.
func (h *ShowHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.Shows.GetByID(ctx, id); err != nil {
		return writeError(c, err)
	}
	cancelled, err := h.Shows.Cancel(ctx, id, time.Now().UTC())
	if err != nil {
		return internalError(c)
	}
	if !cancelled {
		return c.JSON(http.StatusConflict, errorBody{ErrorCode: "CONFLICT", Message: "show already started, finished or was cancelled"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"show_id": id,
		"status":  model.ShowCancelled,
	})
}

// Get handles GET /v1/shows/:id (public): the show plus movie and
// screen snippets for rendering a booking page.
func (h *ShowHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	s, err := h.Shows.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{"show": showJSON(s)}
	if m, err := h.Movies.GetByID(ctx, s.MovieID); err == nil {
		resp["movie"] = echo.Map{"id": m.ID, "title": m.Title, "duration_min": m.DurationMin, "rating": m.Rating}
	}
	if scr, err := h.Screens.GetByID(ctx, s.ScreenID); err == nil {
		resp["screen"] = echo.Map{"id": scr.ID, "name": scr.Name}
	}
	return c.JSON(http.StatusOK, resp)
}

// Seats handles GET /v1/shows/:id/seats (public). The engine applies
// the stale-lock rule before the rows leave the process: a LOCKED
// seat whose hold lapsed is reported AVAILABLE without writing
// anything back.
func (h *ShowHandler) Seats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	seats, err := h.Engine.AvailableSeats(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]showSeatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, showSeatView{
			ID:          s.ID,
			SeatID:      s.SeatID,
			Status:      string(s.Status),
			PriceCents:  s.PriceCents,
			LockedUntil: s.LockedUntil,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": id, "items": out, "count": len(out)})
}

// Occupancy handles GET /v1/shows/:id/occupancy.
func (h *ShowHandler) Occupancy(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	total, booked, err := h.Engine.Occupancy(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	var pct float64
	if total > 0 {
		pct = math.Round(float64(booked)/float64(total)*10000) / 100
	}
	return c.JSON(http.StatusOK, echo.Map{
		"show_id":       id,
		"total_seats":   total,
		"booked_seats":  booked,
		"occupancy_pct": pct,
	})
}

// Revenue handles GET /v1/shows/:id/revenue (admin): the sum of
// confirmed booking amounts for the show.
func (h *ShowHandler) Revenue(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.Shows.GetByID(ctx, id); err != nil {
		return writeError(c, err)
	}
	revenue, err := h.Bookings.RevenueByShow(ctx, id)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"show_id":                 id,
		"confirmed_revenue_cents": revenue,
	})
}

// ListByMovie handles GET /v1/movies/:id/shows (public): upcoming
// bookable shows for a movie.
func (h *ShowHandler) ListByMovie(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.Movies.GetByID(ctx, id); err != nil {
		return writeError(c, err)
	}
	shows, err := h.Shows.ListByMovie(ctx, id, time.Now().UTC())
	if err != nil {
		return internalError(c)
	}
	out := make([]showView, 0, len(shows))
	for i := range shows {
		out = append(out, showJSON(&shows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// ListByScreen handles GET /v1/screens/:id/shows (admin): the full
// timetable of a screen, cancelled and completed shows included.
func (h *ShowHandler) ListByScreen(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.Screens.GetByID(ctx, id); err != nil {
		return writeError(c, err)
	}
	shows, err := h.Shows.ListByScreen(ctx, id)
	if err != nil {
		return internalError(c)
	}
	out := make([]showView, 0, len(shows))
	for i := range shows {
		out = append(out, showJSON(&shows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}
