package store

import "go.uber.org/zap"

// Safe executes op once and returns fallback on any failure instead of
// propagating the error. It is the uniform degrade point for remote calls: the
// caller keeps working on the fallback value while the failure is only logged.
// No retries; retry policy is a non-goal.
func Safe[T any](log *zap.SugaredLogger, label string, op func() (T, error), fallback T) T {
	out, err := op()
	if err != nil {
		if log != nil {
			log.Warnf("%s failed, using fallback: %v", label, err)
		}
		return fallback
	}
	return out
}
