// Package advisor models the pluggable decision engines (ML scoring, rule
// engine) the Correlation Manager consults before executing a recovery
// hedge (SPEC_FULL §5.6). The engine ships with a neutral passthrough; a
// real scoring engine can be substituted without touching caller code.
package advisor

import "context"

// AdvisorRequest describes a pending decision.
type AdvisorRequest struct {
	Kind    string
	Symbol  string
	Context map[string]interface{}
}

// AdvisorResponse is the engine's verdict.
type AdvisorResponse struct {
	Confidence float64
	Approve    bool
	Reason     string
}

// Advisor evaluates a request and returns a confidence-scored verdict.
type Advisor interface {
	Evaluate(ctx context.Context, req AdvisorRequest) (AdvisorResponse, error)
}

// PassthroughAdvisor always approves with neutral confidence. It is the
// default collaborator when no scoring engine is configured.
type PassthroughAdvisor struct{}

// Evaluate implements Advisor.
func (PassthroughAdvisor) Evaluate(ctx context.Context, req AdvisorRequest) (AdvisorResponse, error) {
	return AdvisorResponse{Confidence: 0.5, Approve: true, Reason: "passthrough"}, nil
}

var _ Advisor = PassthroughAdvisor{}
