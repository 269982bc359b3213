package store

import "time"

type SavedTitle struct {
	ID         string    `json:"id"` // UUID
	Topic      string    `json:"topic"`
	Title      string    `json:"title"`
	Category   *string   `json:"category"` // Nullable
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type GenerationHistory struct {
	ID        string    `json:"id"` // UUID
	Topic     string    `json:"topic"`
	Titles    string    `json:"titles"` // JSON array of generated titles
	CreatedAt time.Time `json:"createdAt"`
}

// TitleFilters narrows ListTitles results. Zero values mean "no filter".
type TitleFilters struct {
	Search     string
	Category   string
	IsFavorite *bool
}

// TitleUpdate is a partial patch for UpdateTitle. Nil pointer fields are left
// untouched. CategorySet distinguishes "clear the category" (true with a nil
// Category) from "leave it alone" (false).
type TitleUpdate struct {
	Title       *string
	Category    *string
	CategorySet bool
	IsFavorite  *bool
}
