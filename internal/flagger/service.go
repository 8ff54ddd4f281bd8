package flagger

import (
	"fmt"

	"procwatch/internal/rates"
)

type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusCrit Status = "CRIT"
)

// Flags is the health verdict for one process row.
type Flags struct {
	Status        Status `json:"status"`
	SeverityLevel int    `json:"severity_level"` // 0 ok, 2 warn, 3 crit
	Explanation   string `json:"explanation,omitempty"`
}

// FlaggerService grades process records against Config thresholds.
type FlaggerService struct {
	cfg Config
}

func NewFlaggerService(cfg Config) *FlaggerService {
	return &FlaggerService{cfg: cfg}
}

func (fs *FlaggerService) Flag(r rates.ProcessRecord) Flags {
	f := Flags{Status: StatusOK}
	var explanations []string

	check := func(label string, value float64, th Thresholds, unit string) {
		switch {
		case value > th.Critical:
			f.SeverityLevel = 3
			explanations = append(explanations, fmt.Sprintf("%s critical: %.1f%s", label, value, unit))
		case value > th.Warning:
			f.SeverityLevel = max(f.SeverityLevel, 2)
			explanations = append(explanations, fmt.Sprintf("%s warning: %.1f%s", label, value, unit))
		}
	}

	check("CPU", r.CPUPercent, fs.cfg.CPU, "%")
	check("Memory", r.MemoryPercent, fs.cfg.Memory, "%")
	check("Disk", r.DiskMBps, fs.cfg.Disk, "MB/s")
	check("Network", r.NetworkMbps, fs.cfg.Network, "Mbps")

	switch f.SeverityLevel {
	case 3:
		f.Status = StatusCrit
	case 2:
		f.Status = StatusWarn
	}

	if len(explanations) > 0 {
		f.Explanation = explanations[0]
		if len(explanations) > 1 {
			f.Explanation += fmt.Sprintf(" (+%d more)", len(explanations)-1)
		}
	}
	return f
}

// FlagAll grades every record, keyed by PID.
func (fs *FlaggerService) FlagAll(records []rates.ProcessRecord) map[int32]Flags {
	out := make(map[int32]Flags, len(records))
	for _, r := range records {
		out[r.PID] = fs.Flag(r)
	}
	return out
}
