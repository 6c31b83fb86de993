// Package schemas embeds the JSON schemas for tuning files, the persisted config record and the
// HUD stream.
package schemas

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	Tuning = "tuning.schema.json"
	Config = "config.schema.json"
	HUD    = "hud.schema.json"
)

const baseURL = "https://lootsweep.ai/schemas/"

//go:embed *.schema.json
var files embed.FS

func Raw(name string) ([]byte, error) {
	return files.ReadFile(name)
}

// Compile compiles one embedded schema.
func Compile(name string) (*jsonschema.Schema, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := baseURL + name
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return s, nil
}

// MustCompile is for package-level vars over the embedded set, which is fixed at build time.
func MustCompile(name string) *jsonschema.Schema {
	s, err := Compile(name)
	if err != nil {
		panic(err)
	}
	return s
}
