package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatwalk/chatwalk/internal/runtime"
)

func TestVars_CopyOnWrite(t *testing.T) {
	base := map[string]any{"name": "Ada"}
	vars := runtime.NewVars(base)

	vars.Set("name", "Grace")
	vars.Set("lang", "Go")

	got, ok := vars.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Grace", got)

	// The committed base is never touched by turn-local writes.
	assert.Equal(t, "Ada", base["name"])
	_, inBase := base["lang"]
	assert.False(t, inBase)

	snap := vars.Snapshot()
	assert.Equal(t, "Grace", snap["name"])
	assert.Equal(t, "Go", snap["lang"])
}

func TestVars_UnsetIsNotAnError(t *testing.T) {
	vars := runtime.NewVars(nil)
	_, ok := vars.Get("ghost")
	assert.False(t, ok)
	assert.Equal(t, "Hello !", vars.Resolve("Hello {{ghost}}!"))
}

func TestVars_Resolve(t *testing.T) {
	vars := runtime.NewVars(map[string]any{
		"First name": "Ada",
		"count":      float64(5),
		"user": map[string]any{
			"contact": map[string]any{"email": "ada@example.com"},
		},
	})

	cases := []struct {
		in   string
		want string
	}{
		{"Hi {{First name}}!", "Hi Ada!"},
		{"You said {{count}}", "You said 5"},
		{"mail: {{user.contact.email}}", "mail: ada@example.com"},
		{"missing path: {{user.contact.phone}}", "missing path: "},
		{"no templates", "no templates"},
		{"{{ count }} spaced", "5 spaced"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, vars.Resolve(tc.in), "input %q", tc.in)
	}
}

func TestVars_ResolveAny(t *testing.T) {
	vars := runtime.NewVars(map[string]any{"city": "Paris"})

	in := map[string]any{
		"text":  "Welcome to {{city}}",
		"count": 3,
		"list":  []any{"{{city}}", 1},
	}
	out, ok := vars.ResolveAny(in).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "Welcome to Paris", out["text"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, []any{"Paris", 1}, out["list"])

	// The input payload stays untouched.
	assert.Equal(t, "Welcome to {{city}}", in["text"])
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "First_name", runtime.FormatKey("First name"))
	assert.Equal(t, "a_b_c", runtime.FormatKey("a-b.c"))
	assert.Equal(t, "plain", runtime.FormatKey("plain"))
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{float64(2.5), "2.5"},
		{float64(3), "3"},
		{42, "42"},
		{map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, runtime.Stringify(tc.in))
	}
}
