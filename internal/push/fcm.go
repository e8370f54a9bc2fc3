package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// ErrNoTokens is returned when a notification has no tokens to send to.
var ErrNoTokens = errors.New("notification has no tokens")

// multicaster is the slice of the FCM client the sender needs.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender sends notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client multicaster
	log    zerolog.Logger
}

// NewFCMSender builds a sender from a service account credentials file. An
// empty path falls back to Application Default Credentials.
func NewFCMSender(ctx context.Context, credentialsFile string, log zerolog.Logger) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return newFCMSender(client, log), nil
}

func newFCMSender(client multicaster, log zerolog.Logger) *FCMSender {
	return &FCMSender{
		client: client,
		log:    log.With().Str("component", "fcm_sender").Logger(),
	}
}

// Dispatch sends one multicast for n. Rejected tokens are logged and listed
// in the report; they are not retried.
func (s *FCMSender) Dispatch(ctx context.Context, n Notification) (Report, error) {
	if len(n.Tokens) == 0 {
		return Report{}, ErrNoTokens
	}

	resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: n.Tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	})
	if err != nil {
		return Report{}, fmt.Errorf("send multicast to %s: %w", n.UserID, err)
	}

	report := Report{Sent: resp.SuccessCount}
	for i, r := range resp.Responses {
		if r.Success || i >= len(n.Tokens) {
			continue
		}
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Error()
		}
		report.Failures = append(report.Failures, TokenFailure{Token: n.Tokens[i], Error: msg})
		s.log.Error().
			Str("user_id", n.UserID).
			Str("token", n.Tokens[i]).
			Str("error", msg).
			Msg("Push token rejected")
	}
	return report, nil
}
