package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/xeipuuv/gojsonschema"
)

// OutputRegistry maps output schema references to JSON schema documents.
//
// Like the function registry, schemas are registered explicitly at
// startup. A reference ending in ".json" is additionally resolvable as a
// schema file on disk, which covers schemas shipped next to the
// configuration file.
type OutputRegistry struct {
	fs afero.Fs

	mu    sync.RWMutex
	table map[string][]byte
}

// NewOutputRegistry creates an output schema registry backed by the given
// filesystem. A nil fs defaults to the OS filesystem.
func NewOutputRegistry(fs afero.Fs) *OutputRegistry {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &OutputRegistry{fs: fs, table: make(map[string][]byte)}
}

// Register adds a JSON schema document under the given reference.
func (o *OutputRegistry) Register(ref string, schemaJSON []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.table[ref] = schemaJSON
}

// Validate checks value against the schema registered under ref.
// It returns an error when the schema cannot be resolved or the value
// does not conform. Callers treat validation as best-effort enrichment:
// a failure is logged, never propagated to the tool's caller.
func (o *OutputRegistry) Validate(ref string, value any) error {
	doc, err := o.resolve(ref)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(doc),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return fmt.Errorf("failed to validate against schema %s: %w", ref, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("result does not conform to schema %s: %s", ref, strings.Join(msgs, "; "))
	}
	return nil
}

func (o *OutputRegistry) resolve(ref string) ([]byte, error) {
	o.mu.RLock()
	doc, ok := o.table[ref]
	o.mu.RUnlock()
	if ok {
		return doc, nil
	}

	if strings.HasSuffix(ref, ".json") {
		data, err := afero.ReadFile(o.fs, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", ref, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("output schema %s is not registered", ref)
}
