package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
)

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func message() lifecycle.Message {
	return lifecycle.Message{
		Ref:        lifecycle.Ref{Kind: document.KindReturnBill, ID: 42},
		AdminID:    7,
		SupplierID: 3,
		Number:     "RB-2026-0042",
		Recipient:  "orders@wholesale.test",
		Subject:    "Return Bill RB-2026-0042",
		Filename:   "return-bill-RB-2026-0042.pdf",
		Artifact:   bytes.Repeat([]byte("%PDF-1.3 body "), 20),
	}
}

func TestBuildMIME(t *testing.T) {
	msg := message()
	raw, err := BuildMIME("pharmacy@example.com", msg, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildMIME: %v", err)
	}
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	checks := map[string]string{
		"To":             "orders@wholesale.test",
		HeaderAdminID:    "7",
		HeaderSupplierID: "3",
		HeaderDocumentID: "42",
		HeaderKind:       "return_bill",
	}
	for k, want := range checks {
		if got := m.Header.Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}

	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/mixed" {
		t.Fatalf("Content-Type = %q, %v", mt, err)
	}
	mr := multipart.NewReader(m.Body, params["boundary"])
	var parts int
	var attachment []byte
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		parts++
		if p.FileName() == msg.Filename {
			// multipart.Reader does not decode base64; do it here
			b, _ := io.ReadAll(p)
			attachment = decodeBase64(t, b)
		}
	}
	if parts != 2 {
		t.Errorf("got %d parts, want 2", parts)
	}
	if !bytes.Equal(attachment, msg.Artifact) {
		t.Error("attachment does not round-trip")
	}
}

func TestSESDispatcher(t *testing.T) {
	ses := &fakeSES{}
	d := NewSESWithClient(ses, "pharmacy@example.com", "desk@example.com")
	if err := d.Dispatch(context.Background(), message()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ses.in == nil || ses.in.Content.Raw == nil {
		t.Fatal("expected a raw message")
	}
	if got := ses.in.Destination.ToAddresses; len(got) != 1 || got[0] != "orders@wholesale.test" {
		t.Errorf("ToAddresses = %v", got)
	}
	if !strings.Contains(string(ses.in.Content.Raw.Data), HeaderSupplierID+": 3") {
		t.Error("raw message misses supplier header")
	}
	if len(ses.in.ReplyToAddresses) != 1 {
		t.Errorf("ReplyToAddresses = %v", ses.in.ReplyToAddresses)
	}
}

func TestSESDispatcher_Errors(t *testing.T) {
	ses := &fakeSES{err: errors.New("throttled")}
	if err := NewSESWithClient(ses, "p@example.com", "").Dispatch(context.Background(), message()); err == nil {
		t.Error("expected SES error to propagate")
	}
	if err := NewSESWithClient(&fakeSES{}, "", "").Dispatch(context.Background(), message()); err == nil {
		t.Error("expected error without sender address")
	}
}

func TestLogDispatcher(t *testing.T) {
	if err := (LogDispatcher{}).Dispatch(context.Background(), message()); err != nil {
		t.Errorf("LogDispatcher: %v", err)
	}
}

func decodeBase64(t *testing.T, b []byte) []byte {
	t.Helper()
	clean := strings.NewReplacer("\r", "", "\n", "").Replace(string(b))
	out, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	return out
}
