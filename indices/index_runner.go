package indices

import (
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultSyncSchedule = "0 0 23 * * ?"

// StartCron runs the full sync on schedule, a six field cron expression.
func StartCron(schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultSyncSchedule
	}
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(schedule, func() {
		if _, err := ScheduleNewSyncRunFunc(indexRobot); err != nil {
			logrus.Errorf("scheduled indices sync: %v", err)
		}
	}); err != nil {
		return nil, err
	}
	crontab.Start()
	return crontab, nil
}
