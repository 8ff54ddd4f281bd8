//go:build !linux

package services

import "errors"

var errNetUnsupported = errors.New("per-process network counters are only available on linux")

func netBytes(pid int32) (uint64, error) {
	return 0, errNetUnsupported
}
