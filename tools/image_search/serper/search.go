package serper

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mohammad-safakhou/picbot/tools/image_search/models"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://google.serper.dev"

type Search struct {
	ApiKey  string
	BaseURL string
	Client  *resty.Client
}

func (s Search) Images(ctx context.Context, q string, k int) ([]models.Image, error) {
	// https://serper.dev/ docs
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	resp, err := s.Client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", s.ApiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"q": q, "num": k}).
		Post(strings.TrimRight(base, "/") + "/images")
	if err != nil {
		return nil, err
	}
	body := resp.Body()
	if resp.IsError() {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &models.ProviderError{Provider: "serper", Status: resp.StatusCode(), Message: msg}
	}
	if !gjson.ValidBytes(body) {
		return nil, &models.ProviderError{Provider: "serper", Status: resp.StatusCode(), Message: "malformed response"}
	}

	var out []models.Image
	for _, it := range gjson.GetBytes(body, "images").Array() {
		out = append(out, models.Image{
			Title:        it.Get("title").String(),
			URL:          it.Get("imageUrl").String(),
			ThumbnailURL: it.Get("thumbnailUrl").String(),
			Source:       it.Get("source").String(),
		})
	}
	return out, nil
}
