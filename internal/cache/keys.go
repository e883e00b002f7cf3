package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("analysis:job:%s:status", jobID)
}

func BatchResultKey(batchID uuid.UUID) string {
	return fmt.Sprintf("batch:%s:result", batchID)
}

func BatchProgressKey(batchID uuid.UUID) string {
	return fmt.Sprintf("batch:%s:progress", batchID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
