package kernelspec

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
)

// EnvSpecPath names the environment variable that overrides the embedded
// kernel.json with a file.
const EnvSpecPath = "K_KERNEL_JSON"

//go:embed kernel.json
var defaultSpec []byte

// Spec is a kernel discovery document.
type Spec struct {
	Argv          []string          `json:"argv"`
	DisplayName   string            `json:"display_name"`
	Language      string            `json:"language"`
	Name          string            `json:"name,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	InterruptMode string            `json:"interrupt_mode,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

var specSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"argv", "display_name", "language"},
	Properties: map[string]*jsonschema.Schema{
		"argv": {
			Type:     "array",
			Items:    &jsonschema.Schema{Type: "string"},
			MinItems: ptr(1),
		},
		"display_name":   {Type: "string"},
		"language":       {Type: "string"},
		"name":           {Type: "string"},
		"env":            {Type: "object", AdditionalProperties: &jsonschema.Schema{Type: "string"}},
		"interrupt_mode": {Enum: []any{"signal", "message"}},
		"metadata":       {Type: "object"},
	},
}

// Load reads the kernel spec from the file named by K_KERNEL_JSON, or the
// embedded default when it is unset, and replaces argv[0] with the running
// executable.
func Load() (*Spec, error) {
	data := defaultSpec

	if path := os.Getenv(EnvSpecPath); path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read kernel spec: %w", err)
		}
	}

	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	spec.Argv[0] = executable

	return spec, nil
}

// Parse decodes and validates a kernel spec document.
func Parse(data []byte) (*Spec, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse kernel spec: %w", err)
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse kernel spec: %w", err)
	}

	return &spec, nil
}

// Validate checks a decoded kernel spec against its schema.
func Validate(doc map[string]any) error {
	resolved, err := specSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve kernel spec schema: %w", err)
	}

	if err := resolved.Validate(doc); err != nil {
		return fmt.Errorf("invalid kernel spec: %w", err)
	}

	return nil
}

// JSON encodes the kernel spec the way front-ends expect to find it on disk.
func (s *Spec) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode kernel spec: %w", err)
	}

	return data, nil
}

func ptr[T any](v T) *T { return &v }
