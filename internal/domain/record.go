package domain

import "time"

// Record is a normalized post as it is handed to storage and publishers.
type Record struct {
	AuthorID         string    `json:"author_id" db:"author_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	PlaceID          *string   `json:"place_id" db:"place_id"`
	Latitude         *float64  `json:"latitude" db:"latitude"`
	Longitude        *float64  `json:"longitude" db:"longitude"`
	PlaceName        *string   `json:"place_name" db:"place_name"`
	PlaceFullName    *string   `json:"place_full_name" db:"place_full_name"`
	PlaceCountry     *string   `json:"place_country" db:"place_country"`
	PlaceCountryCode *string   `json:"place_country_code" db:"place_country_code"`
	PostID           string    `json:"post_id" db:"post_id"`
	Language         string    `json:"language" db:"language"`
	LikeCount        int       `json:"like_count" db:"like_count"`
	QuoteCount       int       `json:"quote_count" db:"quote_count"`
	ReplyCount       int       `json:"reply_count" db:"reply_count"`
	RetweetCount     int       `json:"retweet_count" db:"retweet_count"`
	Source           string    `json:"source" db:"source"`
	Text             string    `json:"text" db:"text"`
}

// HasCoordinates reports whether the record carries a post-level geotag position.
func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// ExtractStats counts what happened to the posts of a single page.
type ExtractStats struct {
	Scanned       int
	Accepted      int
	NoGeo         int // no geo tag while one is required
	NoCoordinates int // geo tag without a coordinate pair
	Malformed     int // shape errors: counters, timestamp or coordinates unreadable
	UnknownPlace  int // geo place id missing from the page's places table
}

func (s *ExtractStats) Add(o ExtractStats) {
	s.Scanned += o.Scanned
	s.Accepted += o.Accepted
	s.NoGeo += o.NoGeo
	s.NoCoordinates += o.NoCoordinates
	s.Malformed += o.Malformed
	s.UnknownPlace += o.UnknownPlace
}

// Skipped returns the number of scanned posts that produced no record.
func (s ExtractStats) Skipped() int {
	return s.NoGeo + s.NoCoordinates + s.Malformed
}
