package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

var templateRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// FormatKey normalizes a variable name into an identifier usable in
// condition expressions ("First name" -> "First_name").
func FormatKey(name string) string {
	return keySanitizer.ReplaceAllString(name, "_")
}

// Vars is the session's variable store. It is copy-on-write per turn:
// mutations land in an overlay that later blocks of the same turn see
// immediately, and Snapshot folds the overlay into the committed map
// only when the turn succeeds. An aborted turn drops the overlay.
type Vars struct {
	base    map[string]any
	overlay map[string]any
}

// NewVars wraps the committed snapshot loaded from the session store.
// The base map is never mutated.
func NewVars(base map[string]any) *Vars {
	if base == nil {
		base = map[string]any{}
	}
	return &Vars{base: base, overlay: make(map[string]any)}
}

// Get returns the current value and whether the name is set at all.
// A name never written is unset, not an error.
func (v *Vars) Get(name string) (any, bool) {
	if val, ok := v.overlay[name]; ok {
		return val, true
	}
	val, ok := v.base[name]
	return val, ok
}

// Set binds a value for the rest of the turn.
func (v *Vars) Set(name string, value any) {
	v.overlay[name] = value
}

// Snapshot returns the full binding set as of now: the committed base
// with the turn's overlay applied. The result is a fresh map.
func (v *Vars) Snapshot() map[string]any {
	out := make(map[string]any, len(v.base)+len(v.overlay))
	for k, val := range v.base {
		out[k] = val
	}
	for k, val := range v.overlay {
		out[k] = val
	}
	return out
}

// Env returns the bindings keyed by sanitized identifiers, for use as an
// expression environment.
func (v *Vars) Env() map[string]any {
	out := make(map[string]any, len(v.base)+len(v.overlay))
	for k, val := range v.base {
		out[FormatKey(k)] = val
	}
	for k, val := range v.overlay {
		out[FormatKey(k)] = val
	}
	return out
}

// Resolve substitutes every {{name}} occurrence in text with the
// stringified current value. Unset variables resolve to the empty
// string, never an error. Dotted paths ({{user.email}}) traverse
// structured values.
func (v *Vars) Resolve(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return templateRe.ReplaceAllStringFunc(text, func(m string) string {
		name := strings.TrimSpace(templateRe.FindStringSubmatch(m)[1])
		if val, ok := v.Get(name); ok {
			return Stringify(val)
		}
		// Dotted path into a structured value: longest variable-name
		// prefix wins, the rest is the object path.
		if i := strings.Index(name, "."); i > 0 {
			root, path := name[:i], name[i+1:]
			if val, ok := v.Get(root); ok {
				return stringifyPath(val, path)
			}
		}
		return ""
	})
}

// ResolveAny resolves templates recursively through a generic payload,
// leaving non-string leaves untouched.
func (v *Vars) ResolveAny(value any) any {
	switch t := value.(type) {
	case string:
		return v.Resolve(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = v.ResolveAny(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = v.ResolveAny(val)
		}
		return out
	default:
		return value
	}
}

func stringifyPath(val any, path string) string {
	c := gabs.Wrap(val)
	if hit := c.Path(path); hit != nil {
		return Stringify(hit.Data())
	}
	return ""
}

// Stringify renders a variable value for template substitution.
func Stringify(val any) string {
	switch t := val.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
