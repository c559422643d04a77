package planner

import "fmt"

// PlanningError reports a reference dataset that cannot be trusted for a
// font. It is fatal for that font only.
type PlanningError struct {
	FontID  string
	Bucket  string
	Message string
}

func (e *PlanningError) Error() string {
	if e.Bucket != "" {
		return fmt.Sprintf("planning error for %s: bucket %q: %s", e.FontID, e.Bucket, e.Message)
	}
	return fmt.Sprintf("planning error for %s: %s", e.FontID, e.Message)
}
