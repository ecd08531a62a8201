package models

import "errors"

// Custom errors
var (
	ErrDataUnavailable  = errors.New("past race data is not loaded")
	ErrRaceCardNotFound = errors.New("race card not found")
	ErrScrapeInProgress = errors.New("a scrape run is already in progress")
	ErrNoRacesScheduled = errors.New("no races scheduled for the requested date")
	ErrInvalidRaceID    = errors.New("invalid race ID format")
)
