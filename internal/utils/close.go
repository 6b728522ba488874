package utils

import (
	"io"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// MustClose closes c and logs any error under name.
// Use for shutdown paths where a failed close is worth a warning but not an exit.
func MustClose(c io.Closer, name string, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("resource", name), logger.Error(err))
	}
}
