package transcriber

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"vocalscript/log"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAI speaks the OpenAI audio and chat APIs. The recording is
// transcribed first, then the raw transcript is streamed through a chat
// model that applies the instruction. Groq serves the same API.
type OpenAI struct {
	name        string
	client      *openai.Client
	model       string
	refineModel string
}

func NewOpenAI(apiKey, model, refineModel, baseURL string) *OpenAI {
	if model == "" {
		model = "gpt-4o-transcribe"
	}
	if refineModel == "" {
		refineModel = openai.GPT4oMini
	}
	return newOpenAICompatible("openai", apiKey, model, refineModel, baseURL)
}

func NewGroq(apiKey, model, refineModel, baseURL string) *OpenAI {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	if refineModel == "" {
		refineModel = "llama-3.3-70b-versatile"
	}
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return newOpenAICompatible("groq", apiKey, model, refineModel, baseURL)
}

func newOpenAICompatible(name, apiKey, model, refineModel, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		refineModel: refineModel,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		m := log.RequestMetrics{
			Provider: o.name,
			Model:    o.model + "+" + o.refineModel,
			MimeType: req.MimeType,
			AudioKB:  float64(len(req.Data)) * 3 / 4 / 1024,
		}
		defer func() {
			m.TotalMs = ms(time.Since(start))
			log.Request(m)
		}()

		raw, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    o.model,
			FilePath: "audio." + fileExt(req.MimeType),
			Reader:   base64.NewDecoder(base64.StdEncoding, strings.NewReader(req.Data)),
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			yield("", apiError(err))
			return
		}
		m.TTFBMs = ms(time.Since(start))
		if strings.TrimSpace(raw.Text) == "" {
			return
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:  o.refineModel,
			Stream: true,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.Instruction},
				{Role: openai.ChatMessageRoleUser, Content: raw.Text},
			},
		})
		if err != nil {
			yield("", apiError(err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", apiError(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			text := resp.Choices[0].Delta.Content
			m.Chunks++
			m.Chars += len(text)
			if !yield(text, nil) {
				return
			}
		}
	}
}

// apiError converts go-openai failures so they classify like any other
// provider's.
func apiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

func fileExt(mimeType string) string {
	switch mimeType {
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav":
		return "wav"
	case "audio/flac":
		return "flac"
	case "audio/ogg":
		return "ogg"
	}
	return "webm"
}
