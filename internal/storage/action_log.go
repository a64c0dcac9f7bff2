package storage

import "fmt"

// LogAction appends an audit entry for a toolkit invocation or policy
// decision. tool and detail may be empty; correlationID ties this entry
// back to a specific toolkit envelope.
func (s *Store) LogAction(action, tool, outcome, detail, correlationID string) error {
	_, err := s.db.Exec(
		`INSERT INTO action_log (action, tool, outcome, detail, correlation_id)
		 VALUES (?, ?, ?, ?, ?)`,
		action, tool, outcome, detail, correlationID,
	)
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}
	return nil
}

// CountActionsSince returns how many action_log rows with the given action
// were recorded since cutoffRFC3339, used by the mutation policy gate's
// max_mutations_per_hour check.
func (s *Store) CountActionsSince(action, cutoffRFC3339 string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM action_log WHERE action = ? AND created_at >= ?`,
		action, cutoffRFC3339,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent actions: %w", err)
	}
	return n, nil
}
