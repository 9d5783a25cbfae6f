package brave

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mohammad-safakhou/picbot/tools/image_search/models"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.search.brave.com"

type Search struct {
	ApiKey  string
	BaseURL string
	Client  *resty.Client
}

func (s Search) Images(ctx context.Context, q string, k int) ([]models.Image, error) {
	// https://api.search.brave.com/app/documentation/image-search
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	resp, err := s.Client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-Subscription-Token", s.ApiKey).
		SetQueryParams(map[string]string{"q": q, "count": strconv.Itoa(k)}).
		Get(strings.TrimRight(base, "/") + "/res/v1/images/search")
	if err != nil {
		return nil, err
	}
	body := resp.Body()
	if resp.IsError() {
		msg := gjson.GetBytes(body, "error.detail").String()
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &models.ProviderError{Provider: "brave", Status: resp.StatusCode(), Message: msg}
	}
	if !gjson.ValidBytes(body) {
		return nil, &models.ProviderError{Provider: "brave", Status: resp.StatusCode(), Message: "malformed response"}
	}

	var out []models.Image
	for _, it := range gjson.GetBytes(body, "results").Array() {
		out = append(out, models.Image{
			Title:        it.Get("title").String(),
			URL:          it.Get("properties.url").String(),
			ThumbnailURL: it.Get("thumbnail.src").String(),
			Source:       it.Get("source").String(),
		})
	}
	return out, nil
}
