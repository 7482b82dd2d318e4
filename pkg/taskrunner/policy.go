package taskrunner

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens after a task action returns an error.
type FailurePolicy string

const (
	// FailurePolicyIsolate logs the failure and continues; the run still succeeds.
	FailurePolicyIsolate FailurePolicy = "isolate"
	// FailurePolicyPropagate aborts the run with the first action failure.
	FailurePolicyPropagate FailurePolicy = "propagate"
	// FailurePolicyCollect continues past failures and reports all of them when the run ends.
	FailurePolicyCollect FailurePolicy = "collect"
)

// FailurePolicyNames lists the supported policy names in presentation order.
func FailurePolicyNames() []string {
	return []string{
		string(FailurePolicyIsolate),
		string(FailurePolicyPropagate),
		string(FailurePolicyCollect),
	}
}

// ParseFailurePolicy normalizes a policy name. An empty name selects FailurePolicyIsolate.
func ParseFailurePolicy(raw string) (FailurePolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch FailurePolicy(normalized) {
	case "", FailurePolicyIsolate:
		return FailurePolicyIsolate, nil
	case FailurePolicyPropagate:
		return FailurePolicyPropagate, nil
	case FailurePolicyCollect:
		return FailurePolicyCollect, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFailurePolicy, fmt.Sprintf(unsupportedFailurePolicyTemplate, raw))
	}
}
