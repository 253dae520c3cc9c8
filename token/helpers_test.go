package token

import "github.com/openpgp-hw/tokencore/logger"

func testLogger() logger.Logger {
	return logger.NewSlog(logger.ErrorLevel, false)
}
