package commissioning

import (
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// Document errors wrap model.ErrValidation so the REST layer maps them to 400.
var (
	// ErrEmptyDocument indicates the request carried no template.
	ErrEmptyDocument = fmt.Errorf("%w: empty template document", model.ErrValidation)

	// ErrDocumentTooLarge indicates the template exceeds MaxDocumentSize.
	ErrDocumentTooLarge = fmt.Errorf("%w: template document exceeds size limit", model.ErrValidation)

	// ErrMalformedDocument indicates the template is neither valid YAML nor JSON.
	ErrMalformedDocument = fmt.Errorf("%w: malformed template document", model.ErrValidation)

	// ErrNoParticipant indicates no online participant supports an element type.
	ErrNoParticipant = fmt.Errorf("%w: no participant supports element type", model.ErrValidation)

	// ErrInUse indicates compositions still reference the definition.
	ErrInUse = fmt.Errorf("%w: definition is referenced by compositions", model.ErrInvalidState)
)
