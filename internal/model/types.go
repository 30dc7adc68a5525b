package model

import (
	"sort"
	"time"
)

// CompositionNodeType is the node template type of the composition root
// itself. Every other node template in a service template is an element
// definition.
const CompositionNodeType = "org.onap.policy.clamp.acm.AutomationComposition"

// ElementDefinitionRef identifies an element definition by node template name
// and version.
type ElementDefinitionRef struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// String returns "name:version".
func (r ElementDefinitionRef) String() string {
	return r.Name + ":" + r.Version
}

// NodeTemplate is a single named node of a commissioned service template.
type NodeTemplate struct {
	Type        string         `json:"type" yaml:"type"`
	TypeVersion string         `json:"type_version" yaml:"type_version"`
	Version     string         `json:"version" yaml:"version"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ServiceTemplate is the typed template document behind a composition
// definition. Metadata carries operation timeouts such as deployTimeoutMs.
type ServiceTemplate struct {
	Name          string                  `json:"name" yaml:"name"`
	Version       string                  `json:"version" yaml:"version"`
	Description   string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata      map[string]any          `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	NodeTemplates map[string]NodeTemplate `json:"node_templates" yaml:"node_templates"`
}

// ElementDefinition is a node template that describes an element type.
type ElementDefinition struct {
	Name string `json:"name"`
	NodeTemplate
}

// Ref returns the reference an element uses to point at this definition.
func (d ElementDefinition) Ref() ElementDefinitionRef {
	return ElementDefinitionRef{Name: d.Name, Version: d.Version}
}

// ElementDefinitions returns the element node templates sorted by name.
func (t ServiceTemplate) ElementDefinitions() []ElementDefinition {
	defs := make([]ElementDefinition, 0, len(t.NodeTemplates))
	for name, node := range t.NodeTemplates {
		if node.Type == CompositionNodeType {
			continue
		}
		defs = append(defs, ElementDefinition{Name: name, NodeTemplate: node})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Node returns the node template with the given name.
func (t ServiceTemplate) Node(name string) (NodeTemplate, bool) {
	n, ok := t.NodeTemplates[name]
	return n, ok
}

// ElementDefinitionState is the prime state of one element definition as
// acknowledged by its participant.
type ElementDefinitionState struct {
	NodeTemplateID ElementDefinitionRef `json:"node_template_id"`
	ParticipantID  string               `json:"participant_id,omitempty"`
	State          DefinitionState      `json:"state"`
	Message        string               `json:"message,omitempty"`
	OutProperties  map[string]any       `json:"out_properties,omitempty"`
}

// CompositionDefinition is a commissioned template from which composition
// instances are created.
type CompositionDefinition struct {
	CompositionID     string                            `json:"composition_id"`
	Name              string                            `json:"name"`
	Version           string                            `json:"version"`
	Template          ServiceTemplate                   `json:"template"`
	State             DefinitionState                   `json:"state"`
	StateChangeResult StateChangeResult                 `json:"state_change_result"`
	ElementStates     map[string]ElementDefinitionState `json:"element_states,omitempty"`
	LastMsg           time.Time                         `json:"last_msg"`
	CreatedAt         time.Time                         `json:"created_at"`
	UpdatedAt         time.Time                         `json:"updated_at"`
}

// DeepCopy returns an independent copy of the definition.
func (d *CompositionDefinition) DeepCopy() *CompositionDefinition {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.Template = d.Template.deepCopy()
	if d.ElementStates != nil {
		cpy.ElementStates = make(map[string]ElementDefinitionState, len(d.ElementStates))
		for k, v := range d.ElementStates {
			v.OutProperties = deepCopyMap(v.OutProperties)
			cpy.ElementStates[k] = v
		}
	}
	return &cpy
}

func (t ServiceTemplate) deepCopy() ServiceTemplate {
	cpy := t
	cpy.Metadata = deepCopyMap(t.Metadata)
	if t.NodeTemplates != nil {
		cpy.NodeTemplates = make(map[string]NodeTemplate, len(t.NodeTemplates))
		for k, v := range t.NodeTemplates {
			v.Properties = deepCopyMap(v.Properties)
			cpy.NodeTemplates[k] = v
		}
	}
	return cpy
}

// Element is one unit of work within a composition, owned by exactly one
// participant.
type Element struct {
	ID            string               `json:"id"`
	Definition    ElementDefinitionRef `json:"definition"`
	ParticipantID string               `json:"participant_id"`

	DeployState DeployState `json:"deploy_state"`
	LockState   LockState   `json:"lock_state"`
	SubState    SubState    `json:"sub_state"`
	Stage       *int        `json:"stage,omitempty"`

	// Opaque payloads exchanged with the participant
	Properties    map[string]any `json:"properties,omitempty"`
	OutProperties map[string]any `json:"out_properties,omitempty"`

	OperationalState string `json:"operational_state,omitempty"`
	UseState         string `json:"use_state,omitempty"`
	Message          string `json:"message,omitempty"`
	Description      string `json:"description,omitempty"`
}

// DeepCopy returns an independent copy of the element.
func (e Element) DeepCopy() Element {
	cpy := e
	cpy.Stage = cloneIntPtr(e.Stage)
	cpy.Properties = deepCopyMap(e.Properties)
	cpy.OutProperties = deepCopyMap(e.OutProperties)
	return cpy
}

// AutomationComposition is one instance of a composition definition.
//
// DeployState and LockState are a cached roll-up of the element states; the
// supervision package is the only writer of the terminal roll-up.
type AutomationComposition struct {
	InstanceID          string `json:"instance_id"`
	Name                string `json:"name"`
	Version             string `json:"version"`
	Description         string `json:"description,omitempty"`
	CompositionID       string `json:"composition_id"`
	CompositionTargetID string `json:"composition_target_id,omitempty"`

	DeployState       DeployState       `json:"deploy_state"`
	LockState         LockState         `json:"lock_state"`
	SubState          SubState          `json:"sub_state"`
	StateChangeResult StateChangeResult `json:"state_change_result"`

	// Phase is the start phase or stage currently being dispatched.
	Phase   *int      `json:"phase,omitempty"`
	LastMsg time.Time `json:"last_msg"`

	// Elements keeps insertion order.
	Elements []Element `json:"elements"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Element returns a pointer to the element with the given id, or nil.
// The pointer aliases the composition's slice.
func (ac *AutomationComposition) Element(id string) *Element {
	for i := range ac.Elements {
		if ac.Elements[i].ID == id {
			return &ac.Elements[i]
		}
	}
	return nil
}

// ElementIDs returns element ids in composition order.
func (ac *AutomationComposition) ElementIDs() []string {
	ids := make([]string, len(ac.Elements))
	for i, e := range ac.Elements {
		ids[i] = e.ID
	}
	return ids
}

// ParticipantIDs returns the distinct participants referenced by elements,
// sorted.
func (ac *AutomationComposition) ParticipantIDs() []string {
	seen := make(map[string]struct{}, len(ac.Elements))
	ids := make([]string, 0, len(ac.Elements))
	for _, e := range ac.Elements {
		if _, ok := seen[e.ParticipantID]; ok {
			continue
		}
		seen[e.ParticipantID] = struct{}{}
		ids = append(ids, e.ParticipantID)
	}
	sort.Strings(ids)
	return ids
}

// InTransition reports whether a transition is in flight.
func (ac *AutomationComposition) InTransition() bool {
	return InTransition(ac.DeployState, ac.LockState, ac.SubState)
}

// CurrentOrder returns the order the composition is executing, or OrderNone.
func (ac *AutomationComposition) CurrentOrder() Order {
	return CurrentOrder(ac.DeployState, ac.LockState, ac.SubState)
}

// DeepCopy returns an independent snapshot. Dispatch plans and notification
// listeners always receive copies.
func (ac *AutomationComposition) DeepCopy() *AutomationComposition {
	if ac == nil {
		return nil
	}
	cpy := *ac
	cpy.Phase = cloneIntPtr(ac.Phase)
	if ac.Elements != nil {
		cpy.Elements = make([]Element, len(ac.Elements))
		for i, e := range ac.Elements {
			cpy.Elements[i] = e.DeepCopy()
		}
	}
	return &cpy
}

// ElementType is a node type a participant can act on.
type ElementType struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Participant is a remote agent. Elements reference it by id only.
type Participant struct {
	ParticipantID         string            `json:"participant_id"`
	State                 ParticipantState  `json:"state"`
	Health                ParticipantHealth `json:"health"`
	SupportedElementTypes []ElementType     `json:"supported_element_types"`
	LastSeen              time.Time         `json:"last_seen"`
	CreatedAt             time.Time         `json:"created_at"`
}

// Supports reports whether the participant advertises the node type.
// An empty version matches any version.
func (p *Participant) Supports(typeName, typeVersion string) bool {
	for _, t := range p.SupportedElementTypes {
		if t.Name == typeName && (typeVersion == "" || t.Version == "" || t.Version == typeVersion) {
			return true
		}
	}
	return false
}

// DeepCopy returns an independent copy of the participant.
func (p *Participant) DeepCopy() *Participant {
	if p == nil {
		return nil
	}
	cpy := *p
	if p.SupportedElementTypes != nil {
		cpy.SupportedElementTypes = append([]ElementType(nil), p.SupportedElementTypes...)
	}
	return &cpy
}

// Rollback is the pre-migration snapshot of a composition's elements.
// Each migration overwrites the previous snapshot.
type Rollback struct {
	InstanceID    string    `json:"instance_id"`
	CompositionID string    `json:"composition_id"`
	Elements      []Element `json:"elements"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRollback snapshots ac's current definition and elements.
func NewRollback(ac *AutomationComposition, now time.Time) *Rollback {
	snap := ac.DeepCopy()
	return &Rollback{
		InstanceID:    ac.InstanceID,
		CompositionID: ac.CompositionID,
		Elements:      snap.Elements,
		CreatedAt:     now,
	}
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// DeepCopyProperties copies a free-form property map.
func DeepCopyProperties(m map[string]any) map[string]any {
	return deepCopyMap(m)
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
