package commissioning

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// MaxDocumentSize is the largest template document accepted (8MB).
const MaxDocumentSize = 8 * 1024 * 1024

// document is the on-the-wire shape of a service template. Node templates
// may sit at the top level or, TOSCA style, under topology_template.
// JSON documents decode through the same path since JSON is valid YAML.
type document struct {
	ToscaDefinitionsVersion string                        `yaml:"tosca_definitions_version"`
	Name                    string                        `yaml:"name"`
	Version                 string                        `yaml:"version"`
	Description             string                        `yaml:"description"`
	Metadata                map[string]any                `yaml:"metadata"`
	NodeTemplates           map[string]model.NodeTemplate `yaml:"node_templates"`
	TopologyTemplate        *struct {
		NodeTemplates map[string]model.NodeTemplate `yaml:"node_templates"`
	} `yaml:"topology_template"`
}

// ParseDocument decodes a YAML or JSON service template and validates it.
//
// Returns ErrEmptyDocument, ErrDocumentTooLarge, ErrMalformedDocument, or a
// model.ErrorList for a well-formed template with structural problems.
func ParseDocument(data []byte) (*model.ServiceTemplate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(false)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	nodes := make(map[string]model.NodeTemplate, len(doc.NodeTemplates))
	for name, n := range doc.NodeTemplates {
		nodes[name] = n
	}
	if doc.TopologyTemplate != nil {
		for name, n := range doc.TopologyTemplate.NodeTemplates {
			if _, dup := nodes[name]; dup {
				return nil, fmt.Errorf("%w: node template %s declared twice", ErrMalformedDocument, name)
			}
			nodes[name] = n
		}
	}

	tmpl := &model.ServiceTemplate{
		Name:          doc.Name,
		Version:       doc.Version,
		Description:   doc.Description,
		Metadata:      normalise(doc.Metadata),
		NodeTemplates: nodes,
	}
	for name, n := range tmpl.NodeTemplates {
		n.Properties = normalise(n.Properties)
		tmpl.NodeTemplates[name] = n
	}

	if err := model.ValidateTemplate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// normalise converts the map[any]any values yaml may produce for non-string
// keys into map[string]any so templates survive a JSON round trip.
func normalise(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normaliseValue(v)
	}
	return out
}

func normaliseValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalise(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normaliseValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normaliseValue(val)
		}
		return out
	default:
		return v
	}
}
