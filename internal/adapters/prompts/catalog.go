// Package prompts loads the prompt catalog shipped with the binary.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// EmotionDetection is the system prompt of the conversational agent.
const EmotionDetection = "emotion_detection"

//go:embed prompts.yaml
var embedded []byte

// Prompt is one logical prompt.
type Prompt struct {
	// ID is the stored prompt id on providers that support them.
	ID       string `yaml:"id"`
	System   string `yaml:"system"`
	Input    string `yaml:"input"`
	Reminder string `yaml:"reminder"`
}

// Catalog maps logical prompt names to prompts.
type Catalog struct {
	prompts map[string]Prompt
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Parse reads a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]Prompt
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("prompts: parse catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("prompts: catalog is empty")
	}
	for name, p := range raw {
		p.System = strings.TrimSpace(p.System)
		p.Reminder = strings.TrimSpace(p.Reminder)
		raw[name] = p
	}
	return &Catalog{prompts: raw}, nil
}

// Get returns the prompt registered under name.
func (c *Catalog) Get(name string) (Prompt, bool) {
	p, ok := c.prompts[name]
	return p, ok
}

// WithID overrides the stored prompt id of name.
func (c *Catalog) WithID(name, id string) {
	if id == "" {
		return
	}
	p := c.prompts[name]
	p.ID = id
	c.prompts[name] = p
}

// Render fills the system and input templates of name with vars.
func (c *Catalog) Render(name string, vars map[string]string) (system, input string, err error) {
	p, ok := c.prompts[name]
	if !ok {
		return "", "", fmt.Errorf("prompts: unknown prompt %q", name)
	}
	if system, err = render(name+".system", p.System, vars); err != nil {
		return "", "", err
	}
	if input, err = render(name+".input", p.Input, vars); err != nil {
		return "", "", err
	}
	return system, input, nil
}

func render(name, text string, vars map[string]string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("prompts: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("prompts: render %s: %w", name, err)
	}
	return buf.String(), nil
}
