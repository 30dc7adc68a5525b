package topology

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// Timeout property names looked up in a service template's metadata.
const (
	DeployTimeout      = "deployTimeoutMs"
	UndeployTimeout    = "undeployTimeoutMs"
	UpdateTimeout      = "updateTimeoutMs"
	MigrateTimeout     = "migrateTimeoutMs"
	DeleteTimeout      = "deleteTimeoutMs"
	MaxOperationWaitMs = "maxOperationWaitMs"
)

var opNames = map[model.DeployState]string{
	model.DeployStateDeploying:   DeployTimeout,
	model.DeployStateUndeploying: UndeployTimeout,
	model.DeployStateUpdating:    UpdateTimeout,
	model.DeployStateMigrating:   MigrateTimeout,
	model.DeployStateDeleting:    DeleteTimeout,
}

// GetOpName returns the timeout property for a deploy state. States without
// a dedicated property use maxOperationWaitMs.
func GetOpName(state model.DeployState) string {
	if name, ok := opNames[state]; ok {
		return name
	}
	return MaxOperationWaitMs
}

// GetTimeout reads a millisecond timeout from properties. Integers, floats
// and numeric strings are accepted; anything else, or a non-positive value,
// yields def.
func GetTimeout(properties map[string]any, name string, def time.Duration) time.Duration {
	ms, ok := toInt(properties[name])
	if !ok || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// OperationTimeout bounds one phase of the composition's current transition.
// The operation-specific property wins, then the template's own
// maxOperationWaitMs, then def.
func OperationTimeout(ac *model.AutomationComposition, tmpl model.ServiceTemplate, def time.Duration) time.Duration {
	fallback := GetTimeout(tmpl.Metadata, MaxOperationWaitMs, def)
	return GetTimeout(tmpl.Metadata, GetOpName(ac.DeployState), fallback)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
