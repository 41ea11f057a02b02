package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// Document is the on-disk JSON form of a trust configuration. Certificate
// fields are paths to PEM files; they are materialized into a Config
// through the Source capability.
type Document struct {
	// SelfSignedRoot is the path to a PEM self-signed root tried first.
	SelfSignedRoot string `json:"selfSignedRoot,omitempty"`

	// Intermediates are paths to PEM files with extra chain certificates.
	Intermediates []string `json:"intermediates,omitempty"`

	// CustomRoots are paths to PEM files forming the custom trust set.
	CustomRoots []string `json:"customRoots,omitempty"`

	// AllowExpired applies time-validity leniency.
	AllowExpired bool `json:"allowExpired,omitempty"`
}

// LoadConfig reads a trust configuration document, validates it against
// the generated schema, and materializes the referenced certificates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("reading trust config %q: %w", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Config{}, fmt.Errorf("trust config %q: %w", path, err)
	}
	return doc.Materialize()
}

// ParseDocument validates and decodes a trust configuration document.
func ParseDocument(data []byte) (*Document, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}

// Materialize loads every referenced certificate and assembles a Config.
func (d *Document) Materialize() (Config, error) {
	cfg := Config{AllowExpired: d.AllowExpired}

	if d.SelfSignedRoot != "" {
		certs, err := PEMFileSource{Path: d.SelfSignedRoot}.Certificates()
		if err != nil {
			return Config{}, fmt.Errorf("self-signed root: %w", err)
		}
		cfg.SelfSignedRoot = certs[0]
	}
	for _, p := range d.Intermediates {
		certs, err := PEMFileSource{Path: p}.Certificates()
		if err != nil {
			return Config{}, fmt.Errorf("intermediates: %w", err)
		}
		cfg.Intermediates = append(cfg.Intermediates, certs...)
	}
	for _, p := range d.CustomRoots {
		certs, err := PEMFileSource{Path: p}.Certificates()
		if err != nil {
			return Config{}, fmt.Errorf("custom roots: %w", err)
		}
		cfg.CustomRoots = append(cfg.CustomRoots, certs...)
	}
	return cfg, nil
}

// validateDocument checks the raw JSON against a schema reflected from
// the Document type, so malformed configs fail with a schema error before
// any certificate I/O happens.
func validateDocument(data []byte) error {
	reflector := new(jsonschema.Reflector)
	reflector.ExpandedStruct = true
	schema := reflector.Reflect(&Document{})

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshaling config schema: %w", err)
	}
	compiled, err := santhosh.CompileString("trustconfig.schema.json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("invalid trust config: %w", err)
	}
	return nil
}
