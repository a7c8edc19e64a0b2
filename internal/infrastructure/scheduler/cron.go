package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"newsmonitor/internal/config"
)

// NewSchedule builds the fire-time schedule from configuration. A cron
// expression wins over the fixed interval.
func NewSchedule(cfg config.SchedulerConfig) (cron.Schedule, error) {
	if expr := strings.TrimSpace(cfg.CronExpression); expr != "" {
		if cfg.Timezone != "" && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
			expr = fmt.Sprintf("CRON_TZ=%s %s", cfg.Timezone, expr)
		}
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", cfg.CronExpression, err)
		}
		return schedule, nil
	}

	if cfg.Interval() <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d minutes", cfg.IntervalMinutes)
	}
	return cron.Every(cfg.Interval()), nil
}
