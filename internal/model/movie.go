package model

import "time"

// MovieStatus enumerates the lifecycle of a movie in the catalog.
// Movies start as COMING_SOON, move to NOW_SHOWING when shows are
// scheduled and end up as ENDED once they leave the programme.
type MovieStatus string

const (
    MovieComingSoon MovieStatus = "COMING_SOON"
    MovieNowShowing MovieStatus = "NOW_SHOWING"
    MovieEnded      MovieStatus = "ENDED"
)

// Movie represents an entry in the movie catalog.  Shows reference
// movies by ID; the duration is used when validating show times
// against the screen schedule.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – movie title.
//  Description – optional synopsis.
//  DurationMin – runtime in minutes.
//  Genre       – genre label (e.g. ACTION, DRAMA).
//  Language    – audio language.
//  Rating      – certification rating (e.g. PG-13).
//  ReleaseDate – theatrical release date.
//  Status      – catalog status (COMING_SOON, NOW_SHOWING, ENDED).
//  PosterURL   – optional poster image URL.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Movie struct {
    ID          uint64      // movies.id
    Title       string      // movies.title
    Description *string     // movies.description (nullable)
    DurationMin uint32      // movies.duration_min
    Genre       string      // movies.genre
    Language    string      // movies.language
    Rating      string      // movies.rating
    ReleaseDate time.Time   // movies.release_date
    Status      MovieStatus // movies.status
    PosterURL   *string     // movies.poster_url (nullable)
    CreatedAt   time.Time   // movies.created_at
    UpdatedAt   time.Time   // movies.updated_at
}
