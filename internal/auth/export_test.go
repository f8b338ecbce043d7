package auth

import "time"

// IssueAt signs a token with an explicit role and clock for tests.
func (s *JWTService) IssueAt(subject, role string, now time.Time) (string, time.Time, error) {
	return s.issue(subject, role, now)
}
