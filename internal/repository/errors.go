// Package repository contains data access logic separated from HTTP
// handlers.  Each operation issues exactly one SQL statement built with
// squirrel against the movies table.
package repository

import "errors"

// ErrMovieNotFound is returned by id-keyed reads and writes when no row
// has the requested id.  Handlers translate it into an HTTP 404.
var ErrMovieNotFound = errors.New("movie not found")
