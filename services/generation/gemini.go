package gensvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

type geminiService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

var _ core.TextGenerator = (*geminiService)(nil)

func NewGeminiService(conf *core.Config) *geminiService {
	return &geminiService{
		apiURL: conf.Generation.ApiURL,
		apiKey: conf.Generation.ApiKey,
		model:  conf.Generation.Model,
		client: &http.Client{Timeout: conf.Generation.Timeout},
	}
}

type (
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	content struct {
		Parts []part `json:"parts"`
	}
	part struct {
		Text string `json:"text"`
	}

	generateResponse struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

func (svc *geminiService) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "marshaling generation request")
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", svc.apiURL, svc.model, svc.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "creating generation request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "sending generation request")
	}
	defer res.Body.Close()

	var body generateResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding generation response")
	}
	if body.Error != nil {
		return "", errors.Errorf("generation API error: %s", body.Error.Message)
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("generation API returned no candidates")
	}
	return strings.TrimSpace(body.Candidates[0].Content.Parts[0].Text), nil
}
