// Package codec provides the byte serialization used for checkpoint payloads
// and cache entries.
//
// A Codec turns arbitrary in-memory values into bytes and back. Every codec
// has a file extension; the extension is part of the on-disk naming contract
// of snapshots (<name><ext>, <name>-0000<ext>).
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Codec encodes values to bytes and decodes them back.
type Codec interface {
	// Name identifies the codec in configuration ("json", "yaml", "gob").
	Name() string

	// Ext is the file extension including the leading dot.
	Ext() string

	// Marshal encodes v.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into the value pointed to by v.
	Unmarshal(data []byte, v any) error
}

// JSON encodes values as JSON. It is the default codec.
var JSON Codec = jsonCodec{}

// YAML encodes values as YAML documents.
var YAML Codec = yamlCodec{}

// Gob encodes values with encoding/gob. Concrete types stored behind
// interfaces must be registered with gob.Register by the caller.
var Gob Codec = gobCodec{}

// Default is the codec used when none is configured.
var Default = JSON

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Ext() string  { return ".json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }
func (yamlCodec) Ext() string  { return ".yaml" }

func (yamlCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }
func (gobCodec) Ext() string  { return ".gob" }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "gob":
		return Gob, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
