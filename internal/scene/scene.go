/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene loads element trees from YAML or JSON documents. Documents
// are validated against an embedded JSON schema before they are built.
package scene

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"framepass/internal/dispatch"
	"framepass/internal/element"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed scene.schema.json
var schemaJSON []byte

var (
	// ErrInvalidScene wraps schema and build failures.
	ErrInvalidScene = errors.New("scene: invalid document")
)

// Size mirrors element.Size in documents.
type Size struct {
	W float32 `json:"w"`
	H float32 `json:"h"`
}

// ElementDoc describes one element.
type ElementDoc struct {
	Type     string       `json:"type"`
	Name     string       `json:"name,omitempty"`
	Text     string       `json:"text,omitempty"`
	Gap      float32      `json:"gap,omitempty"`
	Padding  float32      `json:"padding,omitempty"`
	Grow     float32      `json:"grow,omitempty"`
	Size     *Size        `json:"size,omitempty"`
	Children []ElementDoc `json:"children,omitempty"`
}

// Doc is a scene document.
type Doc struct {
	Name     string     `json:"name"`
	Viewport *Size      `json:"viewport,omitempty"`
	Root     ElementDoc `json:"root"`
}

// Scene is a built document.
type Scene struct {
	Name     string
	Viewport element.Size
	Root     element.Box
	// Index maps element names to elements.
	Index map[string]element.Box
}

// Load reads and builds the scene at path. ".json" files are read as JSON,
// everything else as YAML.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Build(doc)
}

// Parse decodes and validates a document.
func Parse(data []byte, isJSON bool) (Doc, error) {
	var doc Doc
	raw := data
	if !isJSON {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return doc, fmt.Errorf("%w: %v", ErrInvalidScene, err)
		}
		b, err := json.Marshal(generic)
		if err != nil {
			return doc, fmt.Errorf("%w: %v", ErrInvalidScene, err)
		}
		raw = b
	}
	if err := Validate(raw); err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return doc, nil
}

// Validate checks a JSON document against the scene schema.
func Validate(jsonDoc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(jsonDoc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidScene, strings.Join(msgs, "; "))
}

// Build constructs the element tree. Element names must be unique; unnamed
// elements get "<type><n>".
func Build(doc Doc) (*Scene, error) {
	b := &builder{index: make(map[string]element.Box), counts: make(map[string]int)}
	root, err := b.build(doc.Root)
	if err != nil {
		return nil, err
	}
	sc := &Scene{Name: doc.Name, Root: root, Index: b.index}
	if doc.Viewport != nil {
		sc.Viewport = element.Size{W: doc.Viewport.W, H: doc.Viewport.H}
	}
	return sc, nil
}

type builder struct {
	index  map[string]element.Box
	counts map[string]int
}

func (b *builder) build(s ElementDoc) (element.Box, error) {
	name := s.Name
	if name == "" {
		b.counts[s.Type]++
		name = fmt.Sprintf("%s%d", s.Type, b.counts[s.Type])
	}
	if _, dup := b.index[name]; dup {
		return nil, fmt.Errorf("%w: duplicate element name %q", ErrInvalidScene, name)
	}
	var size element.Size
	if s.Size != nil {
		size = element.Size{W: s.Size.W, H: s.Size.H}
	}

	var box element.Box
	switch s.Type {
	case "vstack", "hstack":
		axis := element.Vertical
		if s.Type == "hstack" {
			axis = element.Horizontal
		}
		st := element.NewStack(name, axis, s.Gap, element.Uniform(s.Padding))
		st.Grow = s.Grow
		b.index[name] = st
		for _, c := range s.Children {
			child, err := b.build(c)
			if err != nil {
				return nil, err
			}
			st.Add(child)
		}
		box = st
	case "label":
		l := element.NewLabel(name, s.Text, element.Uniform(s.Padding))
		l.Grow = s.Grow
		box = l
	case "spacer":
		box = element.NewSpacer(name, size, s.Grow)
	case "box":
		n := element.NewNode(name, size)
		n.Grow = s.Grow
		box = n
	default:
		return nil, fmt.Errorf("%w: unknown element type %q", ErrInvalidScene, s.Type)
	}
	b.index[name] = box
	return box, nil
}

// Elements returns the scene's elements in depth-first order.
func (sc *Scene) Elements() []dispatch.Element {
	var out []dispatch.Element
	_ = element.Walk(sc.Root, func(el dispatch.Element, _ int) error {
		out = append(out, el)
		return nil
	})
	return out
}
