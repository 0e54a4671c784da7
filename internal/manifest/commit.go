// Package manifest implements C1: content-addressed YAML commits under
// "{root}/_manifest/", from-chain replay, and the view_* subtree
// exclusion rule. It deliberately knows nothing about concrete
// Operation types — internal/operation decodes/encodes the tagged
// operation records this package carries as opaque yaml.Node values.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// OperationEnvelope is one tagged operation record: a `type` field plus
// variant-specific fields, carried as a raw YAML mapping node so this
// package never needs to know the concrete Operation types
// internal/operation defines.
type OperationEnvelope struct {
	Type string
	node yaml.Node
}

// NewOperationEnvelope builds an envelope from any YAML-marshalable
// value that already carries its own `type` field.
func NewOperationEnvelope(opType string, v any) (OperationEnvelope, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return OperationEnvelope{}, fmt.Errorf("manifest: encoding operation %q: %w", opType, err)
	}
	return OperationEnvelope{Type: opType, node: node}, nil
}

// Decode unmarshals the envelope's underlying mapping into v.
func (e OperationEnvelope) Decode(v any) error {
	return e.node.Decode(v)
}

func (e OperationEnvelope) MarshalYAML() (interface{}, error) {
	return &e.node, nil
}

func (e *OperationEnvelope) UnmarshalYAML(value *yaml.Node) error {
	e.node = *value
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "type" {
			e.Type = value.Content[i+1].Value
		}
	}
	if e.Type == "" {
		return fmt.Errorf("manifest: operation record missing required 'type' field")
	}
	return nil
}

// Change is one recorded batch of operations, matching spec.md §6's
// "changes: [Change]" field and each Change's {id, description,
// operations} shape.
type Change struct {
	ID          string              `yaml:"id"`
	Description string              `yaml:"description"`
	Operations  []OperationEnvelope `yaml:"operations"`
}

// Commit is one manifest document (spec.md §6 "Commit (Manifest)").
type Commit struct {
	Version   uint64    `yaml:"version"`
	Hash      string    `yaml:"hash"`
	CreatedAt time.Time `yaml:"timestamp"`
	Author    string    `yaml:"author,omitempty"`
	Message   string    `yaml:"message"`
	From      string    `yaml:"from"`
	Changes   []Change  `yaml:"changes"`
}

// IsOrigin reports whether c has no predecessor.
func (c Commit) IsOrigin() bool { return c.From == "" }

// canonicalBytes serializes c with Hash blanked, the exact bytes the
// 12-char digest is computed over (spec.md §4.1, §8). The from key is
// always present; an origin commit serializes it as an empty string.
func (c Commit) canonicalBytes() ([]byte, error) {
	cp := c
	cp.Hash = ""
	return yaml.Marshal(cp)
}

// ComputeHash returns the 12-hex digest of c's canonical serialization.
func (c Commit) ComputeHash() (string, error) {
	raw, err := c.canonicalBytes()
	if err != nil {
		return "", fmt.Errorf("manifest: serializing commit for hashing: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12], nil
}

// FileName renders the "{version:05d}{hash}.yaml" convention.
func (c Commit) FileName() string {
	return fmt.Sprintf("%05d%s.yaml", c.Version, c.Hash)
}

// CommitHeader is the lightweight projection history() returns.
type CommitHeader struct {
	Version   uint64
	Hash      string
	CreatedAt time.Time
	Author    string
	Message   string
}
