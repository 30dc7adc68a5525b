package model

import (
	"regexp"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength        = 255
	maxVersionLength     = 50
	maxDescriptionLength = 1000
	maxElements          = 500
	maxParticipantIDLen  = 100
	participantIDPattern = `^[A-Za-z0-9][A-Za-z0-9._:-]*$`
	versionPattern       = `^\d+(\.\d+){0,2}([-+][0-9A-Za-z.-]+)?$`
)

var (
	participantIDRegex = regexp.MustCompile(participantIDPattern)
	versionRegex       = regexp.MustCompile(versionPattern)
)

// ValidateComposition checks a composition request for structural problems.
// Definition existence is checked separately against the commissioned
// template. All problems are returned together as an ErrorList.
func ValidateComposition(ac *AutomationComposition) error {
	if ac == nil {
		return ErrorList{"composition is required"}
	}

	var errs ErrorList
	validateNameVersion(&errs, "composition", ac.Name, ac.Version)
	if ac.CompositionID == "" {
		errs.Addf("composition_id is required")
	}
	if len(ac.Description) > maxDescriptionLength {
		errs.Addf("description exceeds %d characters", maxDescriptionLength)
	}

	switch {
	case len(ac.Elements) == 0:
		errs.Addf("at least one element is required")
	case len(ac.Elements) > maxElements:
		errs.Addf("composition exceeds %d elements", maxElements)
	}

	seen := make(map[string]struct{}, len(ac.Elements))
	for i := range ac.Elements {
		e := &ac.Elements[i]
		if e.ID == "" {
			errs.Addf("element %d: id is required", i)
		} else if _, dup := seen[e.ID]; dup {
			errs.Addf("element %s: duplicate id", e.ID)
		} else {
			seen[e.ID] = struct{}{}
		}
		if e.Definition.Name == "" || e.Definition.Version == "" {
			errs.Addf("element %s: definition name and version are required", e.ID)
		}
		if e.ParticipantID != "" && !ValidParticipantID(e.ParticipantID) {
			errs.Addf("element %s: invalid participant id %q", e.ID, e.ParticipantID)
		}
	}

	return errs.Err()
}

// ValidateTemplate checks a service template before commissioning.
func ValidateTemplate(t *ServiceTemplate) error {
	if t == nil {
		return ErrorList{"service template is required"}
	}

	var errs ErrorList
	validateNameVersion(&errs, "service template", t.Name, t.Version)

	defs := t.ElementDefinitions()
	if len(defs) == 0 {
		errs.Addf("service template has no element definitions")
	}
	for _, d := range defs {
		if d.Type == "" {
			errs.Addf("node template %s: type is required", d.Name)
		}
		if d.Version == "" {
			errs.Addf("node template %s: version is required", d.Name)
		}
	}
	return errs.Err()
}

// ValidParticipantID reports whether id is a usable participant identifier.
func ValidParticipantID(id string) bool {
	return len(id) <= maxParticipantIDLen && participantIDRegex.MatchString(id)
}

func validateNameVersion(errs *ErrorList, what, name, version string) {
	switch {
	case name == "":
		errs.Addf("%s name is required", what)
	case len(name) > maxNameLength:
		errs.Addf("%s name exceeds %d characters", what, maxNameLength)
	}
	switch {
	case version == "":
		errs.Addf("%s version is required", what)
	case len(version) > maxVersionLength || !versionRegex.MatchString(version):
		errs.Addf("%s version %q is invalid", what, version)
	}
}

// GenerateID creates a new UUID for a composition, definition or message.
func GenerateID() string {
	return uuid.New().String()
}
