package services

import "context"

// Sensor reads one kind of host data through gopsutil. Collect returns the
// sensor's own result type (CPUResult, MemResult or ProcessResult).
type Sensor interface {
	Name() string
	Collect(ctx context.Context) (any, error)
}
