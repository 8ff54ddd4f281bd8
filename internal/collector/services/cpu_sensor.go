package services

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
)

type CPUResult struct {
	LogicalCores  int    `json:"logical_cores"`
	PhysicalCores int    `json:"physical_cores"`
	Model         string `json:"model"`
}

// CPUSensor reports the host's core counts, used to normalise process CPU%.
type CPUSensor struct{}

func NewCPUSensor() *CPUSensor {
	return &CPUSensor{}
}

func (s *CPUSensor) Name() string {
	return "CPU"
}

func (s *CPUSensor) Collect(ctx context.Context) (any, error) {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count logical cpus: %w", err)
	}
	physical, _ := cpu.CountsWithContext(ctx, false)

	model := "Unknown"
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		model = info[0].ModelName
	}

	return CPUResult{
		LogicalCores:  logical,
		PhysicalCores: physical,
		Model:         model,
	}, nil
}
