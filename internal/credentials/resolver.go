package credentials

import (
	"sort"
	"strings"

	"github.com/yairfalse/ilmari/pkg/types"
)

// TypeResolver maps a credential row to a command-set device type.
// Lookup order: exact id or alias, then the longest matching alias prefix,
// then the default.
type TypeResolver struct {
	defaultType string
	exact       map[string]string
	prefixes    []prefixType
}

type prefixType struct {
	prefix     string
	deviceType string
}

// NewTypeResolver builds a resolver from the devices section of the config
func NewTypeResolver(defaultType string, exact, prefixes map[string]string) *TypeResolver {
	r := &TypeResolver{
		defaultType: defaultType,
		exact:       make(map[string]string, len(exact)),
	}
	for k, v := range exact {
		r.exact[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range prefixes {
		r.prefixes = append(r.prefixes, prefixType{prefix: strings.ToLower(strings.TrimSpace(k)), deviceType: v})
	}
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i].prefix) != len(r.prefixes[j].prefix) {
			return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
		}
		return r.prefixes[i].prefix < r.prefixes[j].prefix
	})
	return r
}

// Resolve returns the device type for cred
func (r *TypeResolver) Resolve(cred types.Credential) string {
	id := strings.ToLower(cred.CanonicalID)
	alias := strings.ToLower(cred.Alias)

	if t, ok := r.exact[id]; ok {
		return t
	}
	if alias != "" {
		if t, ok := r.exact[alias]; ok {
			return t
		}
		for _, p := range r.prefixes {
			if p.prefix != "" && strings.HasPrefix(alias, p.prefix) {
				return p.deviceType
			}
		}
	}
	return r.defaultType
}
