package cache

import "fmt"

func CountedKey(sessionID, jobID string) string {
	return fmt.Sprintf("counted:%s:%s", sessionID, jobID)
}

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// RateLimitKey scopes the intent rate limit to one API client.
func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
