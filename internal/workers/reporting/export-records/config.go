// internal/workers/reporting/export-records/config.go
package exportrecords

import "time"

type Config struct {
	Timeout time.Duration
	// MaxAuditRows caps rows read from the audit trail per export.
	MaxAuditRows int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      time.Minute,
		MaxAuditRows: 10000,
	}
}
