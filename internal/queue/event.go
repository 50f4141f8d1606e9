// Package queue defines the movie change events exchanged over RabbitMQ,
// the publisher used by the HTTP handlers and the consumer behind the
// consume command.
package queue

import "time"

// EventType names the change a MovieEvent describes.
type EventType string

const (
	MovieCreated EventType = "movie.created"
	MovieUpdated EventType = "movie.updated"
	MovieLiked   EventType = "movie.liked"
	MovieDeleted EventType = "movie.deleted"
	MoviesPurged EventType = "movies.purged"
)

// MovieEvent is published after a write to the movies table succeeded.
// MovieID is zero for MoviesPurged.  Title and Likes carry the state the
// writer observed, if any.
type MovieEvent struct {
	Type       EventType `json:"type"`
	MovieID    int64     `json:"movie_id,omitempty"`
	Title      *string   `json:"title,omitempty"`
	Likes      *int      `json:"likes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
