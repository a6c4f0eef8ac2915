package core

import (
	"context"
)

// ShutdownFunc releases one resource during shutdown: closing the history
// database, flushing logs, closing the device pool. It should honour ctx's
// deadline and be safe to call twice.
type ShutdownFunc func(ctx context.Context) error
