package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// ErrNoRecipient is returned for an email without a recipient address.
var ErrNoRecipient = errors.New("email has no recipient")

// SendGridMailer sends email through SendGrid dynamic templates.
type SendGridMailer struct {
	key               string
	from              *sgmail.Email
	invoiceTemplateID string
	log               zerolog.Logger
}

// NewSendGridMailer creates a SendGrid-backed Mailer.
func NewSendGridMailer(key, fromName, fromAddress, invoiceTemplateID string, log zerolog.Logger) *SendGridMailer {
	return &SendGridMailer{
		key:               key,
		from:              sgmail.NewEmail(fromName, fromAddress),
		invoiceTemplateID: invoiceTemplateID,
		log:               log.With().Str("component", "sendgrid_mailer").Logger(),
	}
}

func (m *SendGridMailer) invoiceMail(e InvoiceEmail) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(e.ToName, e.ToAddress))
	p.SetDynamicTemplateData("invoiceId", e.InvoiceID)
	p.SetDynamicTemplateData("parentName", e.ToName)
	p.SetDynamicTemplateData("termName", e.TermName)
	p.SetDynamicTemplateData("amountDue", e.Amount)
	p.SetDynamicTemplateData("dueDate", e.DueDate)
	p.SetDynamicTemplateData("lineItems", e.Lines)

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.SetTemplateID(m.invoiceTemplateID)
	msg.AddPersonalizations(p)
	return msg
}

// SendInvoiceReady sends the invoice-ready template to the parent.
func (m *SendGridMailer) SendInvoiceReady(ctx context.Context, e InvoiceEmail) error {
	if e.ToAddress == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.invoiceMail(e))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send invoice email: status %d: %s", res.StatusCode, res.Body)
	}
	m.log.Debug().Str("invoice_id", e.InvoiceID).Int("status", res.StatusCode).Msg("Invoice email accepted")
	return nil
}
