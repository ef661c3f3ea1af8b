package observerproto

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemasErr = err
		return
	}
	c := jsonschema.NewCompiler()
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemasErr = err
			return
		}
		if err := c.AddResource(e.Name(), bytes.NewReader(b)); err != nil {
			schemasErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
	}
	out := map[string]*jsonschema.Schema{}
	for _, e := range entries {
		s, err := c.Compile(e.Name())
		if err != nil {
			schemasErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		out[e.Name()] = s
	}
	schemas = out
}

// Schema returns the compiled schema for a message type, e.g. "POSE".
func Schema(msgType string) (*jsonschema.Schema, error) {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return nil, schemasErr
	}
	name := map[string]string{
		TypeHello:   "hello.schema.json",
		TypeWelcome: "welcome.schema.json",
		TypePose:    "pose.schema.json",
		TypeEvent:   "event.schema.json",
	}[msgType]
	s := schemas[name]
	if s == nil {
		return nil, fmt.Errorf("no schema for %q", msgType)
	}
	return s, nil
}

// Decode validates raw against the schema of msgType and unmarshals it into v.
func Decode(raw []byte, msgType string, v any) error {
	s, err := Schema(msgType)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
