package scheduler

import (
	"context"
	"time"

	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/service"
)

// Job names, shared by the cron schedule, the HTTP surface and cmd/run-job.
const (
	JobTermRollover     = "roller"
	JobInvoices         = "invoices"
	JobReminders        = "reminders"
	JobInvoiceReminders = "invoice-reminders"
)

// Services are the batch jobs the scheduler can run.
type Services struct {
	Roller          *service.TermRoller
	Invoices        *service.InvoiceGenerator
	Reminders       *service.ReminderAggregator
	InvoiceReminder *service.InvoiceReminder
}

// DailyJobs binds each service to its name and cron expression.
func DailyJobs(sched config.Schedules, svc Services) []Job {
	return []Job{
		{
			Name: JobTermRollover,
			Spec: sched.TermRollover,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.Roller.Run(ctx, now)
			},
		},
		{
			Name: JobInvoices,
			Spec: sched.InvoiceGenerate,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.Invoices.Generate(ctx, now)
			},
		},
		{
			Name: JobReminders,
			Spec: sched.DailyReminder,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.Reminders.Run(ctx, now)
			},
		},
		{
			Name: JobInvoiceReminders,
			Spec: sched.InvoiceReminder,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.InvoiceReminder.Run(ctx, now)
			},
		},
	}
}

// DryRunJobs returns the side-effect-free variant of every job that has one.
// svc should be built with a logging dispatcher and mailer; invoices only
// previews. The roller has no dry run.
func DryRunJobs(svc Services) []Job {
	return []Job{
		{
			Name: JobInvoices,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.Invoices.Preview(ctx, now)
			},
		},
		{
			Name: JobReminders,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.Reminders.Run(ctx, now)
			},
		},
		{
			Name: JobInvoiceReminders,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return svc.InvoiceReminder.Run(ctx, now)
			},
		},
	}
}
