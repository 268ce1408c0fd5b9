package csp

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/xsslab/xsslab/pkg/utils"
)

// DirectiveOption is one directive to emit when generating a policy.
type DirectiveOption struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Generate renders opts as a header value, in order, skipping empty directives.
func Generate(opts []DirectiveOption) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		if len(o.Values) == 0 {
			continue
		}
		parts = append(parts, o.Name+" "+strings.Join(o.Values, " "))
	}
	return strings.Join(parts, "; ")
}

// Builder accumulates directives in insertion order.
type Builder struct {
	opts []DirectiveOption
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Set replaces the values of name, keeping its original position.
func (b *Builder) Set(name string, values ...string) *Builder {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range b.opts {
		if b.opts[i].Name == name {
			b.opts[i].Values = values
			return b
		}
	}
	b.opts = append(b.opts, DirectiveOption{Name: name, Values: values})
	return b
}

// Add appends values to name.
func (b *Builder) Add(name string, values ...string) *Builder {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range b.opts {
		if b.opts[i].Name == name {
			b.opts[i].Values = append(b.opts[i].Values, values...)
			return b
		}
	}
	return b.Set(name, values...)
}

func (b *Builder) Options() []DirectiveOption {
	out := make([]DirectiveOption, len(b.opts))
	copy(out, b.opts)
	return out
}

func (b *Builder) String() string {
	return Generate(b.opts)
}

// GenerateNonce returns a fresh base64 nonce and its 'nonce-...' source.
func GenerateNonce() (nonce, source string, err error) {
	nonce, err = utils.GenerateNonce(16)
	if err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, "'nonce-" + nonce + "'", nil
}

// HashSource computes the quoted hash source for an inline script or style body.
func HashSource(content, alg string) (string, error) {
	var sum []byte
	switch strings.ToLower(alg) {
	case "", "sha256":
		h := sha256.Sum256([]byte(content))
		sum, alg = h[:], "sha256"
	case "sha384":
		h := sha512.Sum384([]byte(content))
		sum = h[:]
	case "sha512":
		h := sha512.Sum512([]byte(content))
		sum = h[:]
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", alg)
	}
	return fmt.Sprintf("'%s-%s'", strings.ToLower(alg), base64.StdEncoding.EncodeToString(sum)), nil
}

var presets = map[string][]DirectiveOption{
	"strict": {
		{"default-src", []string{"'none'"}},
		{"script-src", []string{"'self'"}},
		{"style-src", []string{"'self'"}},
		{"img-src", []string{"'self'"}},
		{"font-src", []string{"'self'"}},
		{"connect-src", []string{"'self'"}},
		{"object-src", []string{"'none'"}},
		{"base-uri", []string{"'none'"}},
		{"form-action", []string{"'self'"}},
		{"frame-ancestors", []string{"'none'"}},
	},
	"moderate": {
		{"default-src", []string{"'self'"}},
		{"script-src", []string{"'self'", "https:"}},
		{"style-src", []string{"'self'", "'unsafe-inline'"}},
		{"img-src", []string{"'self'", "data:", "https:"}},
		{"object-src", []string{"'none'"}},
		{"base-uri", []string{"'self'"}},
		{"frame-ancestors", []string{"'self'"}},
	},
	"legacy": {
		{"default-src", []string{"*"}},
		{"script-src", []string{"*", "'unsafe-inline'", "'unsafe-eval'"}},
		{"style-src", []string{"*", "'unsafe-inline'"}},
	},
}

// PresetNames lists the built-in policy presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns the directives of a named preset.
func Preset(name string) ([]DirectiveOption, bool) {
	opts, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	out := make([]DirectiveOption, len(opts))
	for i, o := range opts {
		out[i] = DirectiveOption{Name: o.Name, Values: append([]string{}, o.Values...)}
	}
	return out, true
}
