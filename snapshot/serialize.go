package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"
)

// Plugin customizes serialization for the values it accepts.
type Plugin interface {
	Test(v any) bool
	Serialize(v any, s *Serializer) string
}

// PluginFunc adapts a pair of functions to Plugin.
type PluginFunc struct {
	TestFunc      func(v any) bool
	SerializeFunc func(v any, s *Serializer) string
}

func (p PluginFunc) Test(v any) bool                       { return p.TestFunc(v) }
func (p PluginFunc) Serialize(v any, s *Serializer) string { return p.SerializeFunc(v, s) }

// Serializer turns values into deterministic text. Plugins are consulted
// most-recently-added first; values no plugin accepts are dumped with
// go-spew using sorted map keys and without pointer addresses.
type Serializer struct {
	plugins []Plugin
	dumper  *spew.ConfigState
}

// NewSerializer returns a Serializer with the built-in plugins followed by
// the given ones, so later plugins take precedence.
func NewSerializer(plugins ...Plugin) *Serializer {
	s := &Serializer{
		dumper: &spew.ConfigState{
			Indent:                  "  ",
			SortKeys:                true,
			SpewKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			DisableMethods:          true,
		},
	}
	for _, p := range builtinPlugins() {
		s.AddPlugin(p)
	}
	for _, p := range plugins {
		s.AddPlugin(p)
	}
	return s
}

// AddPlugin registers p ahead of every plugin added before it.
func (s *Serializer) AddPlugin(p Plugin) {
	s.plugins = append([]Plugin{p}, s.plugins...)
}

// Serialize renders v.
func (s *Serializer) Serialize(v any) string {
	for _, p := range s.plugins {
		if p.Test(v) {
			return p.Serialize(v, s)
		}
	}
	return strings.TrimRight(s.dumper.Sdump(v), "\n")
}

func builtinPlugins() []Plugin {
	return []Plugin{
		PluginFunc{
			TestFunc: func(v any) bool { _, ok := v.(json.RawMessage); return ok },
			SerializeFunc: func(v any, _ *Serializer) string {
				raw := v.(json.RawMessage)
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err != nil {
					return string(raw)
				}
				return buf.String()
			},
		},
		PluginFunc{
			TestFunc:      func(v any) bool { _, ok := v.([]byte); return ok },
			SerializeFunc: func(v any, _ *Serializer) string { return string(v.([]byte)) },
		},
		PluginFunc{
			TestFunc: func(v any) bool { _, ok := v.(error); return ok },
			SerializeFunc: func(v any, _ *Serializer) string {
				return fmt.Sprintf("%T: %s", v, v.(error).Error())
			},
		},
		PluginFunc{
			TestFunc:      func(v any) bool { _, ok := v.(string); return ok },
			SerializeFunc: func(v any, _ *Serializer) string { return v.(string) },
		},
		PluginFunc{
			TestFunc:      func(v any) bool { _, ok := v.(propMatcher); return ok },
			SerializeFunc: func(v any, _ *Serializer) string { return v.(propMatcher).String() },
		},
		PluginFunc{
			TestFunc: func(v any) bool { _, ok := v.(propsView); return ok },
			SerializeFunc: func(v any, s *Serializer) string {
				return v.(propsView).serialize(s)
			},
		},
	}
}

// YAMLPlugin serializes values whose dynamic type satisfies accept as
// YAML documents. A nil accept matches maps, slices and structs that are
// not handled by a later plugin.
func YAMLPlugin(accept func(v any) bool) Plugin {
	if accept == nil {
		accept = func(v any) bool {
			switch v.(type) {
			case nil, string, []byte, error, json.RawMessage, propMatcher, propsView:
				return false
			}
			return true
		}
	}
	return PluginFunc{
		TestFunc: accept,
		SerializeFunc: func(v any, s *Serializer) string {
			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return strings.TrimRight(s.dumper.Sdump(v), "\n")
			}
			enc.Close() //nolint:errcheck
			return strings.TrimRight(buf.String(), "\n")
		},
	}
}
