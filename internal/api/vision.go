package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"squad-planner/internal/config"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// NoTextFound is returned in place of an empty recognition result.
const NoTextFound = "No text found."

var ErrMissingAPIKey = errors.New("vision api key is not configured")

// VisionClient recognizes text in screenshots with the Google Cloud Vision
// images:annotate endpoint.
type VisionClient struct {
	apiKey   string
	endpoint string
	client   *fasthttp.Client
	logger   zerolog.Logger
}

func NewVisionClient(cfg *config.Config, logger zerolog.Logger) *VisionClient {
	return &VisionClient{
		apiKey:   cfg.VisionAPIKey,
		endpoint: cfg.VisionEndpoint,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         20 * time.Second,
			WriteTimeout:        20 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
			// screenshots are posted inline as base64
			MaxResponseBodySize: 8 << 20,
		},
		logger: logger,
	}
}

// Recognize returns the full text detected in image, or NoTextFound when
// the image contains none.
func (c *VisionClient) Recognize(ctx context.Context, image []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body := AnnotateRequest{
		Requests: []AnnotateImageRequest{{
			Image:    AnnotateImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []AnnotateFeature{{Type: "TEXT_DETECTION"}},
		}},
	}

	u := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	result, err := doRequest[AnnotateResponse](ctx, c, u, body)
	if err != nil {
		c.logger.Error().Err(err).Int("bytes", len(image)).Msg("text detection failed")
		return "", err
	}

	if len(result.Responses) == 0 {
		return NoTextFound, nil
	}
	first := result.Responses[0]
	if first.Error != nil {
		return "", fmt.Errorf("vision error %d: %s", first.Error.Code, first.Error.Message)
	}
	if first.FullTextAnnotation == nil || first.FullTextAnnotation.Text == "" {
		return NoTextFound, nil
	}

	c.logger.Debug().Int("bytes", len(image)).Int("chars", len(first.FullTextAnnotation.Text)).Msg("text detected")
	return first.FullTextAnnotation.Text, nil
}

func doRequest[T any](ctx context.Context, client *VisionClient, url string, payload any) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type AnnotateRequest struct {
	Requests []AnnotateImageRequest `json:"requests"`
}

type AnnotateImageRequest struct {
	Image    AnnotateImage     `json:"image"`
	Features []AnnotateFeature `json:"features"`
}

type AnnotateImage struct {
	Content string `json:"content"`
}

type AnnotateFeature struct {
	Type string `json:"type"`
}

type AnnotateResponse struct {
	Responses []AnnotateImageResponse `json:"responses"`
}

type AnnotateImageResponse struct {
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
