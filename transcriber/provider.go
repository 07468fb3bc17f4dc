package transcriber

import "fmt"

type Config struct {
	Provider    string
	APIKey      string
	Model       string
	RefineModel string
	BaseURL     string
	Language    string
}

// New builds a Client for the configured provider. The credential is not
// checked here; a missing key surfaces when a recording is transcribed.
func New(cfg Config) (*Client, error) {
	var p Provider
	switch cfg.Provider {
	case "", "gemini":
		p = NewGemini(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "openai":
		p = NewOpenAI(cfg.APIKey, cfg.Model, cfg.RefineModel, cfg.BaseURL)
	case "groq":
		p = NewGroq(cfg.APIKey, cfg.Model, cfg.RefineModel, cfg.BaseURL)
	case "fake":
		p = NewFake(nil, "fake ", "transcript")
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
	return NewClient(p, cfg.APIKey, Instruction(cfg.Language)), nil
}
