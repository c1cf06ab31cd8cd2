package enums

import "fmt"

// Workflow names the receiving stage a session records.
type Workflow string

const (
	WorkflowGRN Workflow = "grn"
	WorkflowQC  Workflow = "qc"
)

var validWorkflows = []Workflow{
	WorkflowGRN,
	WorkflowQC,
}

// String implements fmt.Stringer.
func (w Workflow) String() string {
	return string(w)
}

// IsValid reports whether the value is a known Workflow.
func (w Workflow) IsValid() bool {
	for _, candidate := range validWorkflows {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWorkflow converts raw input into a Workflow.
func ParseWorkflow(value string) (Workflow, error) {
	for _, candidate := range validWorkflows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid workflow %q", value)
}
