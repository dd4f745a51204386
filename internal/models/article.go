package models

import "time"

// ArticleReference is a candidate article discovered in a site feed.
// Every field defaults to the empty string when the feed omits it.
type ArticleReference struct {
	Location        string `json:"location"`
	Title           string `json:"title"`
	Publication     string `json:"publication"`
	PublicationDate string `json:"publication_date"`
	Keywords        string `json:"keywords"`
}

// ArticleDocument represents the canonical structure stored in Elasticsearch.
type ArticleDocument struct {
	Title           string    `json:"title"`
	Keywords        string    `json:"keywords"`
	Publication     string    `json:"publication"`
	PublicationDate string    `json:"publication_date"`
	Description     string    `json:"description"`
	Source          string    `json:"source"`
	Article         string    `json:"article"`
	Summary         string    `json:"summary"`
	IndexedAt       time.Time `json:"indexed_at"`
}
