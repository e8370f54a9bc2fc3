// Package app wires stores, delivery channels and services for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/mail"
	"github.com/tenacity/ops-backend/internal/push"
	"github.com/tenacity/ops-backend/internal/repository"
	"github.com/tenacity/ops-backend/internal/scheduler"
	"github.com/tenacity/ops-backend/internal/service"
)

// Push modes.
const (
	PushQueue  = "queue"
	PushDirect = "direct"
	PushLog    = "log"
)

// Stores holds one repository per collection.
type Stores struct {
	Terms      *repository.TermRepository
	Classes    *repository.ClassRepository
	Attendance *repository.AttendanceRepository
	Students   *repository.StudentRepository
	Users      *repository.UserRepository
	Invoices   *repository.InvoiceRepository
	Tokens     *repository.TokenRepository
	Settings   *repository.SettingRepository
}

func NewStores(pool *pgxpool.Pool, log zerolog.Logger) Stores {
	return Stores{
		Terms:      repository.NewTermRepository(pool),
		Classes:    repository.NewClassRepository(pool, log),
		Attendance: repository.NewAttendanceRepository(pool, log),
		Students:   repository.NewStudentRepository(pool),
		Users:      repository.NewUserRepository(pool),
		Invoices:   repository.NewInvoiceRepository(pool),
		Tokens:     repository.NewTokenRepository(pool),
		Settings:   repository.NewSettingRepository(pool),
	}
}

// Delivery is the pair of push dispatchers a process needs. Jobs hand
// notifications to Jobs; the push worker delivers queued ones with Sender.
type Delivery struct {
	Jobs   push.Dispatcher
	Sender push.Dispatcher
}

// NewDelivery selects dispatchers for cfg.PushMode. Without Firebase
// credentials the sender only logs.
func NewDelivery(ctx context.Context, cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (Delivery, error) {
	var sender push.Dispatcher = push.NewLogDispatcher(log)
	if cfg.PushMode != PushLog && cfg.FirebaseCredentialsFile != "" {
		fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile, log)
		if err != nil {
			return Delivery{}, err
		}
		sender = fcm
	} else if cfg.PushMode != PushLog {
		log.Warn().Msg("FIREBASE_CREDENTIALS_FILE not set, push notifications will only be logged")
	}

	switch cfg.PushMode {
	case PushQueue:
		return Delivery{
			Jobs:   push.NewQueueDispatcher(rdb, config.WorkerKey.PushNotificationQueue),
			Sender: sender,
		}, nil
	case PushDirect, PushLog:
		return Delivery{Jobs: sender, Sender: sender}, nil
	default:
		return Delivery{}, fmt.Errorf("unknown PUSH_MODE %q", cfg.PushMode)
	}
}

// NewMailer returns a SendGrid mailer, or a console mailer without an API key.
func NewMailer(cfg *config.Config, log zerolog.Logger) mail.Mailer {
	if cfg.SendGridAPIKey == "" {
		log.Warn().Msg("SENDGRID_API_KEY not set, invoice emails will only be logged")
		return mail.NewConsoleMailer(log)
	}
	return mail.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromAddress, cfg.SendGridInvoiceTemplateID, log)
}

// NewServices builds the batch services over st, sending through dispatcher
// and mailer.
func NewServices(cfg *config.Config, st Stores, dispatcher push.Dispatcher, mailer mail.Mailer, log zerolog.Logger) scheduler.Services {
	loc := cfg.Location()
	return scheduler.Services{
		Roller: service.NewTermRoller(st.Terms, st.Classes, st.Attendance, loc, cfg.RollerConcurrency, log),
		Invoices: service.NewInvoiceGenerator(service.InvoiceGeneratorDeps{
			Terms:    st.Terms,
			Classes:  st.Classes,
			Students: st.Students,
			Users:    st.Users,
			Invoices: st.Invoices,
			Tokens:   st.Tokens,
			Push:     dispatcher,
			Mailer:   mailer,
		}, cfg.Billing, loc, log),
		Reminders: service.NewReminderAggregator(service.ReminderDeps{
			Terms:      st.Terms,
			Classes:    st.Classes,
			Attendance: st.Attendance,
			Students:   st.Students,
			Tokens:     st.Tokens,
			Settings:   st.Settings,
			Push:       dispatcher,
		}, loc, log),
		InvoiceReminder: service.NewInvoiceReminder(st.Invoices, st.Tokens, st.Settings, dispatcher, loc, log),
	}
}

// NewDryRunServices builds services that log instead of notifying.
func NewDryRunServices(cfg *config.Config, st Stores, log zerolog.Logger) scheduler.Services {
	dryLog := log.With().Bool("dry_run", true).Logger()
	return NewServices(cfg, st, push.NewLogDispatcher(dryLog), mail.NewConsoleMailer(dryLog), dryLog)
}
