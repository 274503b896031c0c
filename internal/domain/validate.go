package domain

import "fmt"

// ValidateRunRecord checks required fields on a RunRecord before it is
// submitted to the install-data endpoint.
func ValidateRunRecord(r RunRecord) error {
	if r.DataName == "" {
		return fmt.Errorf("dataName is required")
	}
	if r.DataType != "json" {
		return fmt.Errorf("dataType must be %q, got %q", "json", r.DataType)
	}
	if len(r.DataContent.RawData) == 0 {
		return fmt.Errorf("dataContent.rawData is required")
	}
	if r.NumberOfAgents < 1 {
		return fmt.Errorf("numberOfAgents must be at least 1, got %d", r.NumberOfAgents)
	}
	return nil
}

// ValidateIdentity checks required fields on an Identity.
func ValidateIdentity(id Identity) error {
	if id.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// ValidateProgressState checks bounds on a ProgressState.
func ValidateProgressState(p ProgressState) error {
	if p.Progress < 0 || p.Progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100, got %d", p.Progress)
	}
	return nil
}

// ValidateAuditEvent checks required fields on an AuditEvent.
func ValidateAuditEvent(e AuditEvent) error {
	if e.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	return nil
}
