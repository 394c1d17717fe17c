// Package mailer dispatches rendered documents by email.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher sends documents through Amazon SES as raw MIME messages.
type SESDispatcher struct {
	client  SESAPI
	from    string
	replyTo string
	now     func() time.Time
}

// NewSES builds a dispatcher from an AWS config.
func NewSES(cfg aws.Config, from, replyTo string) *SESDispatcher {
	return NewSESWithClient(sesv2.NewFromConfig(cfg), from, replyTo)
}

func NewSESWithClient(client SESAPI, from, replyTo string) *SESDispatcher {
	return &SESDispatcher{client: client, from: from, replyTo: replyTo, now: time.Now}
}

func (d *SESDispatcher) Dispatch(ctx context.Context, msg lifecycle.Message) error {
	if d.from == "" {
		return fmt.Errorf("sender address not configured")
	}
	raw, err := BuildMIME(d.from, msg, d.now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{msg.Recipient}},
		Content: &sestypes.EmailContent{
			Raw: &sestypes.RawMessage{Data: raw},
		},
	}
	if d.replyTo != "" {
		input.ReplyToAddresses = []string{d.replyTo}
	}
	out, err := d.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logging.LogKV("info", "ses accepted message", map[string]interface{}{
		"doc":        msg.Ref.String(),
		"message_id": aws.ToString(out.MessageId),
	})
	return nil
}

// LogDispatcher only logs; used for local runs without SES.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, msg lifecycle.Message) error {
	logging.LogKV("info", "dispatch (log driver)", map[string]interface{}{
		"doc":         msg.Ref.String(),
		"admin_id":    msg.AdminID,
		"supplier_id": msg.SupplierID,
		"recipient":   msg.Recipient,
		"subject":     msg.Subject,
		"filename":    msg.Filename,
		"bytes":       len(msg.Artifact),
	})
	return nil
}
