package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = RenderTemplate(`{{ upper .name }} & {{ default "x" .missing }}`, map[string]any{"name": "naval"})
	require.NoError(t, err)
	assert.Equal(t, "NAVAL & x", out, "no html escaping")

	_, err = RenderTemplate("{{ .broken", nil)
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	tmpl := MustParse("t", `{{ join ", " .Items }} {{ title .Name }} {{ quote .Name }}`)
	out, err := Execute(tmpl, map[string]any{"Items": []string{"a", "b"}, "Name": "fEYNMAN"})
	require.NoError(t, err)
	assert.Equal(t, `a, b Feynman "fEYNMAN"`, out)
}

func TestValidator(t *testing.T) {
	var v Validator
	v.Positive("engine.timeout", 0)
	v.NonNegative("engine.grace", time.Second)
	v.Probability("engine.chance", 1.5)
	v.Min("engine.max", 1, 2)
	v.OneOf("memory.driver", "redis", "memory", "sqlite")
	err := v.Err()
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "engine.timeout", ve.Field)
	assert.Contains(t, err.Error(), "engine.chance")
	assert.Contains(t, err.Error(), "memory.driver")
	assert.NotContains(t, err.Error(), "engine.grace")

	var ok Validator
	ok.Probability("p", 0.4)
	assert.NoError(t, ok.Err())
}
