// Package queue adapts batch schedulers (Slurm, PBS) to the core Submitter and QueueInspector ports.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/ivt-chain/internal/domain/model"
)

// validateExpr reports whether expr is a syntactically valid JMESPath expression.
func validateExpr(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("state expression is required")
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return fmt.Errorf("invalid state expression %q: %w", expr, err)
	}
	return nil
}

// searchJSON decodes raw scheduler JSON and evaluates expr against it.
func searchJSON(raw []byte, expr string) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode scheduler output: %w", err)
	}
	return jmespath.Search(expr, doc)
}

// stateString coerces a JMESPath result into a state name.
// Slurm reports states as a list (["CANCELLED"]) in newer releases and as a string in older ones.
func stateString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		if len(s) > 0 {
			return stateString(s[0])
		}
	}
	return ""
}

// slurmState maps Slurm job states to QueueState.
func slurmState(raw string) model.QueueState {
	s := strings.ToUpper(raw)
	// "CANCELLED by 1234" in sacct's text output
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	switch s {
	case "PENDING", "REQUEUED", "REQUEUE_HOLD", "REQUEUE_FED", "CONFIGURING", "SUSPENDED", "RESV_DEL_HOLD":
		return model.QueueStatePending
	case "RUNNING", "COMPLETING", "SIGNALING", "STAGE_OUT", "RESIZING":
		return model.QueueStateRunning
	case "COMPLETED":
		return model.QueueStateCompleted
	case "FAILED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE", "PREEMPTED":
		return model.QueueStateFailed
	case "CANCELLED", "REVOKED":
		return model.QueueStateCancelled
	default:
		return model.QueueStateUnknown
	}
}

// pbsState maps PBS single-letter job states to QueueState.
// Finished jobs (F, X) are completed unless exitStatus is non-zero.
func pbsState(raw string, exitStatus int) model.QueueState {
	switch strings.ToUpper(raw) {
	case "Q", "H", "W", "T", "S", "U", "M":
		return model.QueueStatePending
	case "R", "E", "B":
		return model.QueueStateRunning
	case "F", "X":
		switch {
		case exitStatus == 0:
			return model.QueueStateCompleted
		case exitStatus < 0 || exitStatus == 271:
			// negative values are scheduler-side aborts; 271 is 256+SIGTERM from qdel
			return model.QueueStateCancelled
		default:
			return model.QueueStateFailed
		}
	default:
		return model.QueueStateUnknown
	}
}
