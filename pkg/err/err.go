package errprocess

import (
	"errors"
	"fmt"

	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// Set log errMsg and return it as a new error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log the failure of op and return err wrapped with it, nil stays nil
func Wrap(op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, err)
}
