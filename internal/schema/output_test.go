package schema

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer"}
	},
	"required": ["name"]
}`

func TestValidateRegisteredSchema(t *testing.T) {
	o := NewOutputRegistry(afero.NewMemMapFs())
	o.Register("person", []byte(personSchema))

	require.NoError(t, o.Validate("person", map[string]any{"name": "ada", "age": 36}))

	err := o.Validate("person", map[string]any{"age": 36})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not conform")

	err = o.Validate("person", map[string]any{"name": "ada", "age": "thirty-six"})
	require.Error(t, err)
}

func TestValidateSchemaFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "schemas/person.json", []byte(personSchema), 0o644))

	o := NewOutputRegistry(fs)

	require.NoError(t, o.Validate("schemas/person.json", map[string]any{"name": "ada"}))

	err := o.Validate("schemas/missing.json", map[string]any{"name": "ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read schema file")
}

func TestValidateUnknownSchema(t *testing.T) {
	o := NewOutputRegistry(afero.NewMemMapFs())

	err := o.Validate("nope", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegisterReplacesSchema(t *testing.T) {
	o := NewOutputRegistry(afero.NewMemMapFs())
	o.Register("s", []byte(`{"type": "string"}`))
	o.Register("s", []byte(`{"type": "integer"}`))

	require.NoError(t, o.Validate("s", 42))
	require.Error(t, o.Validate("s", "still a string"))
}
