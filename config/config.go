package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"storyreel/storyboard"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Media     MediaConfig     `yaml:"media"`
	Video     VideoConfig     `yaml:"video"`
	Templates TemplatesConfig `yaml:"templates"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Paths     PathsConfig     `yaml:"paths"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type TTSConfig struct {
	Mode     string  `yaml:"mode"` // local | remote-workflow
	Command  string  `yaml:"command"`
	Endpoint string  `yaml:"endpoint"`
	Voice    string  `yaml:"voice"`
	Speed    float64 `yaml:"speed"`
	Workflow string  `yaml:"workflow"`
	RefAudio string  `yaml:"ref_audio"`
}

type MediaConfig struct {
	Endpoint string `yaml:"endpoint"`
	Workflow string `yaml:"workflow"`
}

type VideoConfig struct {
	FPS int `yaml:"fps"`
}

type TemplatesConfig struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
}

type PipelineConfig struct {
	NumScenes         int    `yaml:"n_scenes"`
	MinNarrationWords int    `yaml:"min_narration_words"`
	MaxNarrationWords int    `yaml:"max_narration_words"`
	MinPromptWords    int    `yaml:"min_prompt_words"`
	MaxPromptWords    int    `yaml:"max_prompt_words"`
	PromptBatchSize   int    `yaml:"prompt_batch_size"`
	PromptPrefix      string `yaml:"prompt_prefix"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			Mode:  string(storyboard.TTSLocal),
			Voice: "en-US-GuyNeural",
			Speed: 1.0,
		},
		Video:     VideoConfig{FPS: 30},
		Templates: TemplatesConfig{Dir: "templates", Default: "1080x1920/default.html"},
		Pipeline: PipelineConfig{
			NumScenes:         5,
			MinNarrationWords: 5,
			MaxNarrationWords: 20,
			MinPromptWords:    30,
			MaxPromptWords:    60,
			PromptBatchSize:   10,
		},
		Paths: PathsConfig{Output: "output"},
	}
}

// Load reads the config file at path, layered over Default. A missing file
// is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields a pipeline run depends on.
func (c *Config) Validate() error {
	switch storyboard.TTSMode(c.TTS.Mode) {
	case storyboard.TTSLocal, storyboard.TTSRemoteWorkflow:
	default:
		return fmt.Errorf("invalid tts mode %q (want local or remote-workflow)", c.TTS.Mode)
	}
	if storyboard.TTSMode(c.TTS.Mode) == storyboard.TTSRemoteWorkflow && c.TTS.Endpoint == "" {
		return fmt.Errorf("tts endpoint is required in remote-workflow mode")
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video fps must be positive, got %d", c.Video.FPS)
	}
	if c.Pipeline.NumScenes <= 0 {
		return fmt.Errorf("n_scenes must be positive, got %d", c.Pipeline.NumScenes)
	}
	if c.Pipeline.PromptBatchSize <= 0 {
		return fmt.Errorf("prompt_batch_size must be positive, got %d", c.Pipeline.PromptBatchSize)
	}
	return nil
}
