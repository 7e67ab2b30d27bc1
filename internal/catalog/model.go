// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog holds the movies and series the gate unlocks, the admin
// users managing them, and the storage backends behind both.
package catalog

import "time"

// ContentType tells a movie lookup result apart from a flattened episode.
type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentSeries ContentType = "series"
)

// Movie is a single downloadable title. ExternalURL is unique across movies.
type Movie struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	DownloadURL string    `json:"downloadUrl"`
	StreamURL   string    `json:"streamUrl"`
	ExternalURL string    `json:"externalUrl"`
	FileSize    string    `json:"fileSize"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Episode is the leaf of a series document.
type Episode struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
	StreamURL   string `json:"streamUrl"`
	ExternalURL string `json:"externalUrl"`
	FileSize    string `json:"fileSize"`
}

type Season struct {
	ID         string    `json:"_id"`
	SeasonName string    `json:"seasonName"`
	Episodes   []Episode `json:"episodes"`
}

// Series embeds its seasons and episodes; it is always stored and replaced
// as one document.
type Series struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Seasons   []Season  `json:"seasons"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// clone returns a deep copy so stores never share season slices with callers.
func (s Series) clone() Series {
	out := s
	out.Seasons = make([]Season, len(s.Seasons))
	for i, season := range s.Seasons {
		out.Seasons[i] = season
		out.Seasons[i].Episodes = append([]Episode(nil), season.Episodes...)
	}
	return out
}

// User is an admin account. The hash never leaves the process as JSON.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Item is the movie-shaped record returned by an external URL lookup.
// Episodes are flattened into it with their series and season ids.
type Item struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	SeriesTitle string    `json:"seriesTitle,omitempty"`
	SeasonName  string    `json:"seasonName,omitempty"`
	EpisodeName string    `json:"episodeName,omitempty"`
	DownloadURL string    `json:"downloadUrl"`
	StreamURL   string    `json:"streamUrl"`
	ExternalURL string    `json:"externalUrl"`
	FileSize    string    `json:"fileSize"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	SeriesID    string    `json:"seriesId,omitempty"`
	SeasonID    string    `json:"seasonId,omitempty"`
}

// Lookup is the result of resolving an external URL.
type Lookup struct {
	ContentType ContentType `json:"contentType"`
	Item        Item        `json:"movie"`
}

// Link is what the download and stream actions hand back to the client.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SeasonRef locates a season inside its series.
type SeasonRef struct {
	SeriesID    string `json:"seriesId"`
	SeriesTitle string `json:"seriesTitle"`
	Season      Season `json:"season"`
}

// EpisodeRef locates an episode inside its series and season.
type EpisodeRef struct {
	SeriesID    string  `json:"seriesId"`
	SeriesTitle string  `json:"seriesTitle"`
	SeasonID    string  `json:"seasonId"`
	SeasonName  string  `json:"seasonName"`
	Episode     Episode `json:"episode"`
}

// FullTitle renders "<series> - <season> - <episode>".
func (r EpisodeRef) FullTitle() string {
	return r.SeriesTitle + " - " + r.SeasonName + " - " + r.Episode.Title
}

// MoviePatch carries the mutable movie fields. Empty fields are left alone.
type MoviePatch struct {
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
	StreamURL   string `json:"streamUrl"`
	ExternalURL string `json:"externalUrl"`
}

func (p MoviePatch) empty() bool {
	return p.Title == "" && p.DownloadURL == "" && p.StreamURL == "" && p.ExternalURL == ""
}

// SeriesPatch replaces the title and/or the whole season list. A nil
// Seasons slice leaves seasons untouched.
type SeriesPatch struct {
	Title   string   `json:"title"`
	Seasons []Season `json:"seasons"`
}

// EpisodePatch updates a nested episode. Empty fields are left alone.
type EpisodePatch struct {
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
	StreamURL   string `json:"streamUrl"`
	ExternalURL string `json:"externalUrl"`
	FileSize    string `json:"fileSize"`
}

func (p EpisodePatch) empty() bool {
	return p.Title == "" && p.DownloadURL == "" && p.StreamURL == "" && p.ExternalURL == "" && p.FileSize == ""
}

// SortOrder selects how listings are ordered.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortTitle  SortOrder = "title"
)
