package redis

import (
	"magadrive/internal/repository"
)

// Ensure concrete types implement their interfaces.
var (
	_ repository.IdempotencyStore = (*IdempotencyStore)(nil)
)
