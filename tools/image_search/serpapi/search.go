package serpapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mohammad-safakhou/picbot/tools/image_search/models"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://serpapi.com"

// Search queries the google_images engine.
type Search struct {
	ApiKey  string
	BaseURL string
	Client  *resty.Client
}

func (s Search) Images(ctx context.Context, q string, k int) ([]models.Image, error) {
	// https://serpapi.com/google-images-api
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	resp, err := s.Client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google_images",
			"q":       q,
			"num":     strconv.Itoa(k),
			"api_key": s.ApiKey,
		}).
		Get(strings.TrimRight(base, "/") + "/search.json")
	if err != nil {
		return nil, err
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, &models.ProviderError{Provider: "serpapi", Status: resp.StatusCode(), Message: "malformed response"}
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		// an empty result set is reported through the error field
		if !resp.IsError() && strings.Contains(msg, "hasn't returned any results") {
			return nil, nil
		}
		return nil, &models.ProviderError{Provider: "serpapi", Status: resp.StatusCode(), Message: msg}
	}
	if resp.IsError() {
		return nil, &models.ProviderError{Provider: "serpapi", Status: resp.StatusCode(), Message: resp.Status()}
	}

	var out []models.Image
	for _, it := range gjson.GetBytes(body, "images_results").Array() {
		out = append(out, models.Image{
			Title:        it.Get("title").String(),
			URL:          it.Get("original").String(),
			ThumbnailURL: it.Get("thumbnail").String(),
			Source:       it.Get("source").String(),
		})
	}
	return out, nil
}
