// Package config loads vocalscript settings from vocalscript.yml, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"vocalscript/probe"
	"vocalscript/recorder"
	"vocalscript/transcriber"
)

const EnvPrefix = "VOCALSCRIPT"

type Config struct {
	Transcription Transcription `mapstructure:"transcription"`
	Recording     Recording     `mapstructure:"recording"`
	Server        Server        `mapstructure:"server"`
}

type Transcription struct {
	Provider    string `mapstructure:"provider" validate:"oneof=gemini openai groq fake"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	RefineModel string `mapstructure:"refine_model"`
	BaseURL     string `mapstructure:"base_url" validate:"omitempty,url"`
	Language    string `mapstructure:"language" validate:"required"`
}

type Recording struct {
	Candidates   []string      `mapstructure:"candidates" validate:"min=1,dive,required"`
	Timeslice    time.Duration `mapstructure:"timeslice" validate:"gt=0"`
	MinBytes     int           `mapstructure:"min_bytes" validate:"gte=0"`
	MaxDuration  time.Duration `mapstructure:"max_duration" validate:"gte=0"`
	MaxBytes     int           `mapstructure:"max_bytes" validate:"gte=0"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"gte=0"`
}

type Server struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	TLSCert        string   `mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey         string   `mapstructure:"tls_key" validate:"required_with=TLSCert"`
}

func setDefaults(v *viper.Viper) {
	rec := recorder.DefaultConfig()
	v.SetDefault("transcription.provider", "gemini")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.model", "")
	v.SetDefault("transcription.refine_model", "")
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.language", transcriber.DefaultLanguage)
	v.SetDefault("recording.candidates", probe.DefaultCandidates)
	v.SetDefault("recording.timeslice", rec.Timeslice)
	v.SetDefault("recording.min_bytes", rec.MinBytes)
	v.SetDefault("recording.max_duration", rec.MaxDuration)
	v.SetDefault("recording.max_bytes", rec.MaxBytes)
	v.SetDefault("recording.drain_timeout", rec.DrainTimeout)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// vocalscript.yml is looked up in the working directory and the user config
// directory, and its absence is not an error. A .env file in the working
// directory is applied to the environment without overriding it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vocalscript")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "vocalscript"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare API_KEY name is what hosting dashboards usually inject.
	if err := v.BindEnv("transcription.api_key", EnvPrefix+"_TRANSCRIPTION_API_KEY", "API_KEY"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) TranscriberConfig() transcriber.Config {
	t := c.Transcription
	return transcriber.Config{
		Provider:    t.Provider,
		APIKey:      t.APIKey,
		Model:       t.Model,
		RefineModel: t.RefineModel,
		BaseURL:     t.BaseURL,
		Language:    t.Language,
	}
}

func (c *Config) RecorderConfig() recorder.Config {
	r := c.Recording
	return recorder.Config{
		Candidates:   r.Candidates,
		Timeslice:    r.Timeslice,
		MinBytes:     r.MinBytes,
		MaxDuration:  r.MaxDuration,
		MaxBytes:     r.MaxBytes,
		DrainTimeout: r.DrainTimeout,
	}
}
