package domain

// LibraryTrack is one song imported from a user's music library export.
type LibraryTrack struct {
	ID         string `json:"id"`
	Name       string `json:"track"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	Genre      string `json:"genre"`
	Year       int    `json:"year,omitempty"`
	PlayCount  int    `json:"playCount,omitempty"`
	DurationMs int    `json:"duration,omitempty"`
	Rating     int    `json:"rating,omitempty"`
}

// LibraryStats summarises what has been imported.
type LibraryStats struct {
	Tracks  int `json:"tracks"`
	Artists int `json:"artists"`
	Genres  int `json:"genres"`
}
