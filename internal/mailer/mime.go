package mailer

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"time"

	"github.com/diewo77/go-pharmacy/internal/lifecycle"
)

// Headers carrying the dispatch metadata alongside the attachment.
const (
	HeaderAdminID    = "X-Admin-Id"
	HeaderSupplierID = "X-Supplier-Id"
	HeaderDocumentID = "X-Document-Id"
	HeaderKind       = "X-Document-Kind"
)

// BuildMIME renders msg as a multipart/mixed email: a short text body and the
// rendered document as a PDF attachment.
func BuildMIME(from string, msg lifecycle.Message, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"7bit"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Please find attached %s.\r\n", msg.Subject)

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType("application/pdf", map[string]string{"name": msg.Filename})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": msg.Filename})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(att, msg.Artifact); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	hdr := []struct{ k, v string }{
		{"From", from},
		{"To", msg.Recipient},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@pharmacy>", randomID())},
		{"MIME-Version", "1.0"},
		{HeaderAdminID, strconv.FormatUint(uint64(msg.AdminID), 10)},
		{HeaderSupplierID, strconv.FormatUint(uint64(msg.SupplierID), 10)},
		{HeaderDocumentID, strconv.FormatUint(uint64(msg.Ref.ID), 10)},
		{HeaderKind, string(msg.Ref.Kind)},
		{"Content-Type", "multipart/mixed; boundary=" + mw.Boundary()},
	}
	for _, h := range hdr {
		fmt.Fprintf(&out, "%s: %s\r\n", h.k, h.v)
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func writeBase64Lines(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}

func randomID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
