package config

import "time"

const maxRetryDelay = 30 * time.Second

// retryDelay is the capped exponential backoff shared by the Connect* helpers.
func retryDelay(attempt int) time.Duration {
	return min(time.Second*time.Duration(1<<min(attempt, 5)), maxRetryDelay)
}
