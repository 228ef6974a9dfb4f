package utils

import (
	"io"

	"github.com/obsimg/obsimg/internal/logger"
)

func Try(f func() error) {
	if err := f(); err != nil {
		logger.Debug("deferred call failed: %v", err)
	}
}

func Close(c io.Closer) {
	Try(c.Close)
}
