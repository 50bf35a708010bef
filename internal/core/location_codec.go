package core

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/types"
)

const (
	// URIScheme is the first token of every location URI.
	URIScheme = "sgd"

	uriSeparator = ":"
)

// KindSchema declares the positional field order of a kind's URI form
// together with the fields validation requires.
type KindSchema struct {
	Order    []string
	Required []string
}

// Optional returns the declared fields that are not required.
func (s KindSchema) Optional() []string {
	required := map[string]bool{}
	for _, field := range s.Required {
		required[field] = true
	}
	var out []string
	for _, field := range s.Order {
		if !required[field] {
			out = append(out, field)
		}
	}
	return out
}

var pathFieldOrder = []string{"path", "linux_path", "mac_path", "windows_path", "name", "version"}

var kindSchemas = map[types.Kind]KindSchema{
	types.KindAppStore: {
		Order:    []string{"name", "version", "label"},
		Required: []string{"name", "version"},
	},
	types.KindGit: {
		Order:    []string{"path", "version"},
		Required: []string{"path", "version"},
	},
	types.KindGitBranch: {
		Order:    []string{"path", "branch", "version"},
		Required: []string{"path", "branch", "version"},
	},
	types.KindPath: {
		Order: pathFieldOrder,
	},
	types.KindDev: {
		Order: pathFieldOrder,
	},
	types.KindShotgun: {
		Order:    []string{"entity_type", "field", "version", "name", "id", "project_id"},
		Required: []string{"entity_type", "field", "version"},
	},
	types.KindManual: {
		Order:    []string{"name", "version"},
		Required: []string{"name", "version"},
	},
}

// SchemaFor returns the field schema of a kind.
func SchemaFor(kind types.Kind) (KindSchema, error) {
	schema, ok := kindSchemas[kind]
	if !ok {
		return KindSchema{}, LocatorError(string(kind), fmt.Sprintf("unknown location kind %q", kind), nil)
	}
	return schema, nil
}

// KnownKinds lists every kind with a declared schema, sorted.
func KnownKinds() []types.Kind {
	kinds := make([]types.Kind, 0, len(kindSchemas))
	for kind := range kindSchemas {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i] < kinds[j]
	})
	return kinds
}

// ParseURI decodes "<scheme>:<kind>:<field1>:<field2>:..." into a validated
// Location. An empty token means the field is omitted.
func ParseURI(uri string) (types.Location, error) {
	tokens := strings.Split(strings.TrimSpace(uri), uriSeparator)
	if len(tokens) < 2 {
		return types.Location{}, LocatorError(uri, "location uri needs a scheme and a kind", nil)
	}
	if tokens[0] != URIScheme {
		return types.Location{}, LocatorError(uri, fmt.Sprintf("location uri must start with %q", URIScheme), nil)
	}
	rawKind, err := unescapeToken(tokens[1])
	if err != nil {
		return types.Location{}, LocatorError(uri, "malformed percent-encoding in kind", err)
	}
	kind := types.Kind(rawKind)
	schema, err := SchemaFor(kind)
	if err != nil {
		return types.Location{}, LocatorError(uri, fmt.Sprintf("unknown location kind %q", kind), nil)
	}
	values := tokens[2:]
	if len(values) > len(schema.Order) {
		return types.Location{}, LocatorError(uri, fmt.Sprintf("too many fields for kind %s", kind), nil)
	}
	fields := map[string]string{}
	for i, raw := range values {
		value, err := unescapeToken(raw)
		if err != nil {
			return types.Location{}, LocatorError(uri, fmt.Sprintf("malformed percent-encoding in field %q", schema.Order[i]), err)
		}
		if value == "" {
			continue
		}
		fields[schema.Order[i]] = value
	}
	return ValidateLocation(types.NewLocation(kind, fields), schema.Required, schema.Optional())
}

// SerializeURI encodes a Location in positional form. Every declared field
// position up to the last present one is emitted, empty when omitted.
func SerializeURI(loc types.Location) string {
	tokens := []string{URIScheme, escapeToken(string(loc.Kind))}
	schema, ok := kindSchemas[loc.Kind]
	if !ok {
		return strings.Join(tokens, uriSeparator)
	}
	last := -1
	for i, field := range schema.Order {
		if loc.Get(field) != "" {
			last = i
		}
	}
	for i := 0; i <= last; i++ {
		tokens = append(tokens, escapeToken(loc.Get(schema.Order[i])))
	}
	return strings.Join(tokens, uriSeparator)
}

// ValidateLocation fails when a required field is missing and logs and
// drops fields outside required and optional.
func ValidateLocation(loc types.Location, required []string, optional []string) (types.Location, error) {
	allowed := map[string]bool{}
	for _, field := range required {
		allowed[field] = true
		if loc.Get(field) == "" {
			return types.Location{}, LocatorError(
				describeLocation(loc),
				fmt.Sprintf("location of kind %s is missing required field %q", loc.Kind, field),
				nil,
			)
		}
	}
	for _, field := range optional {
		allowed[field] = true
	}
	kept := map[string]string{}
	for field, value := range loc.Fields {
		if !allowed[field] {
			log.Warn().
				Str("kind", string(loc.Kind)).
				Str("field", field).
				Msg("dropping unrecognized location field")
			continue
		}
		kept[field] = value
	}
	return types.NewLocation(loc.Kind, kept), nil
}

// LocationFromMap builds a Location from its dict form, where the kind is
// carried by the "type" key.
func LocationFromMap(values map[string]string) (types.Location, error) {
	kind := types.Kind(strings.TrimSpace(values["type"]))
	if kind == "" {
		return types.Location{}, LocatorError(fmt.Sprintf("%v", values), "location is missing its type", nil)
	}
	schema, err := SchemaFor(kind)
	if err != nil {
		return types.Location{}, err
	}
	fields := map[string]string{}
	for key, value := range values {
		if key == "type" || value == "" {
			continue
		}
		fields[key] = value
	}
	return ValidateLocation(types.NewLocation(kind, fields), schema.Required, schema.Optional())
}

// NormalizeLocation validates an already-built Location against its kind.
func NormalizeLocation(loc types.Location) (types.Location, error) {
	schema, err := SchemaFor(loc.Kind)
	if err != nil {
		return types.Location{}, err
	}
	return ValidateLocation(loc, schema.Required, schema.Optional())
}

func describeLocation(loc types.Location) string {
	if _, ok := kindSchemas[loc.Kind]; ok {
		return SerializeURI(loc)
	}
	return loc.Key()
}

func escapeToken(value string) string {
	value = strings.ReplaceAll(value, "%", "%25")
	return strings.ReplaceAll(value, uriSeparator, "%3A")
}

// unescapeToken percent-decodes any escape, not only the ones escapeToken
// produces, so hand-written URIs may encode other reserved characters.
func unescapeToken(value string) (string, error) {
	return url.PathUnescape(value)
}
