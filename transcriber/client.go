package transcriber

import (
	"context"
	"strings"

	"vocalscript/log"
)

// Client turns an encoded recording into a progressively refined transcript.
type Client struct {
	provider    Provider
	apiKey      string
	instruction string
}

func NewClient(p Provider, apiKey, instruction string) *Client {
	return &Client{provider: p, apiKey: apiKey, instruction: instruction}
}

func (c *Client) Name() string { return c.provider.Name() }

// Warm pre-opens the provider connection in the background.
func (c *Client) Warm() {
	if w, ok := c.provider.(Warmer); ok && c.apiKey != "" {
		go w.Warm()
	}
}

// Transcribe issues a single request and calls publish with the full
// accumulated text after every fragment. It returns the final text.
func (c *Client) Transcribe(ctx context.Context, mimeType, data string, publish func(string)) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	req := Request{MimeType: mimeType, Data: data, Instruction: c.instruction}
	var acc strings.Builder
	fragments := 0
	for text, err := range c.provider.Stream(ctx, req) {
		if err != nil {
			log.Errorf("%s: %v", c.provider.Name(), err)
			return acc.String(), classify(err)
		}
		if text == "" {
			continue
		}
		fragments++
		acc.WriteString(text)
		if publish != nil {
			publish(acc.String())
		}
	}

	if fragments == 0 {
		return "", ErrNothingRecognized
	}
	return acc.String(), nil
}
