package kube

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForCondition polls cond every poll interval until it returns true, an
// error, or the timeout elapses. The first poll happens immediately. On
// timeout the returned error satisfies wait.Interrupted.
func (c *client) WaitForCondition(ctx context.Context, timeout time.Duration, cond ConditionFunc) error {
	return wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true,
		wait.ConditionWithContextFunc(cond))
}

// IsWaitTimeout reports whether err came from a wait that ran out of time or
// was cancelled, as opposed to a condition observation failing.
func IsWaitTimeout(err error) bool {
	return wait.Interrupted(err)
}
