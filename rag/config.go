package rag

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/doppelkit/clone-go-sdk/memory"
	"github.com/doppelkit/clone-go-sdk/score"
)

// Config holds assembler tuning. Every knob has a sensible default; a
// zero-value field falls back to DefaultConfig's value.
type Config struct {
	// CandidateLimit is how many vector-index candidates are fetched
	// before filtering (top-N).
	CandidateLimit int `yaml:"candidate_limit"`

	// ExampleLimit is how many past query/response pairs survive into the
	// rendered context (top-K).
	ExampleLimit int `yaml:"example_limit"`

	// MinExampleScore is the composite floor below which a candidate is
	// not worth rendering even when ExampleLimit is unmet.
	MinExampleScore float64 `yaml:"min_example_score"`

	// MaxWords bounds the rendered context block. Lowest-ranked sections
	// are truncated first.
	MaxWords int `yaml:"max_words"`

	// ScanLimit bounds how many stored messages the keyword fallback
	// path considers.
	ScanLimit int `yaml:"scan_limit"`

	// Weights control composite scoring.
	Weights score.Weights `yaml:"weights"`

	// MemoryCaps and MemoryFloors control tier retrieval bounds.
	MemoryCaps   memory.Caps   `yaml:"memory_caps"`
	MemoryFloors memory.Floors `yaml:"memory_floors"`
}

// DefaultConfig is the shipped tuning.
var DefaultConfig = &Config{
	CandidateLimit:  15,
	ExampleLimit:    3,
	MinExampleScore: 0.15,
	MaxWords:        1000,
	ScanLimit:       200,
	Weights:         score.DefaultWeights,
	MemoryCaps:      memory.DefaultCaps,
	MemoryFloors:    memory.DefaultFloors,
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := *DefaultConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.ExampleLimit <= 0 {
		c.ExampleLimit = d.ExampleLimit
	}
	if c.MaxWords <= 0 {
		c.MaxWords = d.MaxWords
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = d.ScanLimit
	}
	if c.Weights == (score.Weights{}) {
		c.Weights = d.Weights
	}
	if c.MemoryCaps == (memory.Caps{}) {
		c.MemoryCaps = d.MemoryCaps
	}
	if c.MemoryFloors == (memory.Floors{}) {
		c.MemoryFloors = d.MemoryFloors
	}
}
