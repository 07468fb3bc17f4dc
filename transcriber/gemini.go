package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"vocalscript/log"
)

const (
	GeminiBaseURL      = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-3-flash-preview"
)

// Gemini calls streamGenerateContent with the audio inline next to the
// instruction and reads the response as server-sent events.
type Gemini struct {
	client  *TracedClient
	baseURL string
	apiKey  string
	model   string
}

func NewGemini(apiKey, model, baseURL string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Gemini{
		client:  NewTracedClient(baseURL),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (g *Gemini) Name() string { return "gemini" }
func (g *Gemini) Warm()        { g.client.Warm() }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

func (r *geminiResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", g.baseURL, g.model)
}

func (g *Gemini) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{
		{InlineData: &geminiInlineData{MimeType: req.MimeType, Data: req.Data}},
		{Text: req.Instruction},
	}}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	return httpReq, nil
}

func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		httpReq, err := g.newRequest(ctx, req)
		if err != nil {
			yield("", err)
			return
		}

		resp, err := g.client.Do(httpReq)
		if err != nil {
			yield("", err)
			return
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			resp.Close()
			yield("", parseGeminiError(resp.StatusCode, body))
			return
		}

		m := log.RequestMetrics{
			Provider: g.Name(),
			Model:    g.model,
			MimeType: req.MimeType,
			AudioKB:  float64(len(req.Data)) * 3 / 4 / 1024,
		}
		defer func() {
			resp.Close()
			m.DNSMs = ms(resp.Metrics.DNS)
			m.TLSMs = ms(resp.Metrics.TLS)
			m.TTFBMs = ms(resp.Metrics.TTFB)
			m.TotalMs = ms(resp.Metrics.Total)
			m.ConnReused = resp.Metrics.ConnReused
			m.TLSProto = resp.Metrics.TLSProtocol
			log.Request(m)
		}()

		events := newSSEReader(resp.Body)
		for {
			ev, err := events.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("reading stream: %w", err))
				return
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
				yield("", fmt.Errorf("gemini response parse error: %w", err))
				return
			}
			if chunk.Error != nil {
				yield("", &APIError{StatusCode: chunk.Error.Code, Message: chunk.Error.Message})
				return
			}
			text := chunk.text()
			m.Chunks++
			m.Chars += len(text)
			if !yield(text, nil) {
				return
			}
		}
	}
}

func parseGeminiError(status int, body []byte) *APIError {
	var env struct {
		Error *geminiError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return &APIError{StatusCode: status, Message: env.Error.Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
