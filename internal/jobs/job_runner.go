package jobs

import (
	"xapobank-backend/internal/config"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository/postgres"
	"xapobank-backend/internal/service"
)

// JobRunner coordinates the scheduled reminder jobs. Reminders only notify;
// they never mutate balances or statuses.
type JobRunner struct {
	store  *postgres.Store
	email  service.EmailService
	config *config.Config
}

func NewJobRunner(store *postgres.Store, email service.EmailService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:  store,
		email:  email,
		config: cfg,
	}
}

// Config exposes the loaded configuration to the scheduler.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllReminderJobs runs every reminder job once, for manual execution.
func (jr *JobRunner) RunAllReminderJobs() {
	jr.SendMembershipExpiryNotices()
	jr.SendLoanDueNotices()
}
