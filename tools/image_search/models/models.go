package models

import "fmt"

// Image is one provider hit before normalisation.
type Image struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Source       string `json:"source"`
}

// Best returns the full-size URL, falling back to the thumbnail.
func (i Image) Best() string {
	if i.URL != "" {
		return i.URL
	}
	return i.ThumbnailURL
}

// ProviderError is a rejected or failed provider call.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
