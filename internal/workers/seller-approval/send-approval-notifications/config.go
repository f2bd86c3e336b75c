// internal/workers/seller-approval/send-approval-notifications/config.go
package sendapprovalnotifications

import (
	"fmt"
	"time"
)

const (
	ModeSES = "ses"
	ModeLog = "log"
)

type Config struct {
	Timeout      time.Duration
	Mode         string
	FromEmail    string
	EmailEnabled bool
	SMSEnabled   bool
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:      2 * time.Minute,
		Mode:         ModeLog,
		FromEmail:    "no-reply@opas.ph",
		EmailEnabled: true,
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeSES && c.Mode != ModeLog {
		return fmt.Errorf("notification mode must be %q or %q, got %q", ModeSES, ModeLog, c.Mode)
	}
	if c.Mode == ModeSES && c.EmailEnabled && c.FromEmail == "" {
		return fmt.Errorf("from_email is required for ses delivery")
	}
	if !c.EmailEnabled && !c.SMSEnabled {
		return fmt.Errorf("at least one of email or sms must be enabled")
	}
	return nil
}
