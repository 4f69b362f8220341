package model

import "time"

// ShowStatus enumerates the lifecycle of a scheduled show.
type ShowStatus string

const (
    ShowScheduled  ShowStatus = "SCHEDULED"
    ShowInProgress ShowStatus = "IN_PROGRESS"
    ShowCompleted  ShowStatus = "COMPLETED"
    ShowCancelled  ShowStatus = "CANCELLED"
)

// Show represents a scheduled screening of a movie on a particular
// screen.  Shows reference movies and screens and have one
// show_seat row per physical seat, created when the show is
// scheduled with the seat price already baked in.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – movie being screened.
//  ScreenID       – screen where the show takes place.
//  StartsAt       – when the show begins.
//  EndsAt         – when the show ends (must be after StartsAt).
//  BasePriceCents – base price in cents before the seat type
//                   multiplier is applied.
//  Status         – current state of the show (SCHEDULED,
//                   IN_PROGRESS, COMPLETED, CANCELLED).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Show struct {
    ID             uint64     // shows.id
    MovieID        uint64     // shows.movie_id
    ScreenID       uint64     // shows.screen_id
    StartsAt       time.Time  // shows.starts_at
    EndsAt         time.Time  // shows.ends_at
    BasePriceCents uint32     // shows.base_price_cents
    Status         ShowStatus // shows.status
    CreatedAt      time.Time  // shows.created_at
    UpdatedAt      time.Time  // shows.updated_at
}

// Overlaps reports whether the show's scheduled interval intersects
// [startsAt, endsAt).  Used for screen time conflict detection.
func (s *Show) Overlaps(startsAt, endsAt time.Time) bool {
    return s.StartsAt.Before(endsAt) && startsAt.Before(s.EndsAt)
}
