package openapi

import (
	"bytes"
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSpecReturnsCopyAndMatchesFile(t *testing.T) {
	want, err := os.ReadFile("session.yaml")
	if err != nil {
		t.Fatalf("read session.yaml: %v", err)
	}
	spec := Spec()
	if !bytes.Equal(spec, want) {
		t.Fatalf("Spec does not match embedded OpenAPI contents")
	}
	spec[0] ^= 0xFF
	if bytes.Equal(spec, SessionSpec) {
		t.Fatalf("Spec did not return a copy")
	}
}

func TestSpecDeclaresGestures(t *testing.T) {
	var doc struct {
		Paths      map[string]map[string]any `yaml:"paths"`
		Components struct {
			Schemas map[string]struct {
				Properties map[string]struct {
					Enum []string `yaml:"enum"`
				} `yaml:"properties"`
			} `yaml:"schemas"`
		} `yaml:"components"`
	}
	if err := yaml.Unmarshal(Spec(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, path := range []string{"/api/v1/session", "/api/v1/session/gestures", "/api/v1/exports"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
	if n := len(doc.Components.Schemas["Gesture"].Properties["type"].Enum); n != 12 {
		t.Fatalf("expected 12 gesture types, got %d", n)
	}
}
