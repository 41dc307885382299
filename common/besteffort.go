package common

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SideEffectResult is the outcome of a side effect which is not allowed to fail its caller.
type SideEffectResult struct {
	Name    string
	Success bool
	Message string
}

// BestEffort runs fn and converts every failure, panics included, into a logged result.
// It never returns an error: callers decide to inspect the result or to ignore it.
func BestEffort(name string, fields logrus.Fields, fn func() error) (result SideEffectResult) {
	result = SideEffectResult{Name: name, Success: true}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Message = fmt.Sprintf("panic: %v", r)
			logrus.WithFields(fields).WithField("sideEffect", name).Error("side effect panicked: ", r)
		}
	}()

	if err := fn(); err != nil {
		result.Success = false
		result.Message = err.Error()
		logrus.WithFields(fields).WithField("sideEffect", name).Warn("side effect failed: ", err)
	}
	return result
}
