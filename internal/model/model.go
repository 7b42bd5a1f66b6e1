// Package model loads factor-graph model files (YAML or JSON) and turns
// them into graphs the inference engines can run.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// ErrInvalidModel wraps every structural defect found in a model file.
var ErrInvalidModel = errors.New("invalid model")

// File is a parsed model file. Variables and factors are declared flat;
// Build links them into a graph.
type File struct {
	Name      string         `yaml:"name" json:"name"`
	Variables []VariableSpec `yaml:"variables" json:"variables"`
	Factors   []FactorSpec   `yaml:"factors" json:"factors"`
}

// VariableSpec declares one discrete variable and its domain.
type VariableSpec struct {
	Name   string   `yaml:"name" json:"name"`
	Domain []string `yaml:"domain" json:"domain"`
}

// FactorSpec declares one factor as a complete table over its variables.
type FactorSpec struct {
	Name      string   `yaml:"name" json:"name"`
	Variables []string `yaml:"variables" json:"variables"`
	Rows      []Row    `yaml:"rows" json:"rows"`
}

// Row is one table entry: a value tuple aligned with the factor's
// variables and its strictly positive weight.
type Row struct {
	Values []string `yaml:"values" json:"values"`
	P      float64  `yaml:"p" json:"p"`
}

// LoadFromPath reads a model file (YAML or JSON) and returns the parsed File.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by
// content (first non-whitespace char).
func LoadFromPath(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	f, err := Load(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Load parses a model from bytes. ext is the file extension for format
// hint; empty = detect from content.
func Load(data []byte, ext string) (*File, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	var f File
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse model yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse model json: %w", err)
		}
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal(data, &f); err != nil {
				return nil, fmt.Errorf("parse model json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse model yaml: %w", err)
		}
	}
	return &f, nil
}
