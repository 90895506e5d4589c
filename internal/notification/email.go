package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/TriNguyen2808/backend-eventapp/internal/config"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
)

// Notifier delivers the ticket confirmation after a successful payment.
// Delivery is best effort; issuance never rolls back on a send failure.
type Notifier interface {
	SendTicketIssued(ctx context.Context, user *models.User, ticket *models.Ticket, event *models.Event) error
}

// SMTPNotifier sends the confirmation mail with the QR code attached as a
// PNG.
type SMTPNotifier struct {
	cfg    config.EmailConfig
	logger *logger.Logger
}

func NewSMTPNotifier(cfg config.EmailConfig, log *logger.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: log}
}

func (n *SMTPNotifier) SendTicketIssued(ctx context.Context, user *models.User, ticket *models.Ticket, event *models.Event) error {
	body, err := buildMessage(n.cfg.From, user.Email, ticket, event)
	if err != nil {
		return fmt.Errorf("build ticket mail: %w", err)
	}

	addr := n.cfg.SMTPHost + ":" + n.cfg.SMTPPort
	var auth smtp.Auth
	if n.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{user.Email}, body); err != nil {
		return fmt.Errorf("send ticket mail to %s: %w", user.Email, err)
	}

	n.logger.LogPayment("EMAIL", ticket.TicketID, fmt.Sprintf("confirmation sent to %s", user.Email))
	return nil
}

func buildMessage(from, to string, ticket *models.Ticket, event *models.Event) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: Your ticket for %s\r\n", event.Name)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(part, "Your ticket for %s is confirmed.\r\n\r\n", event.Name)
	fmt.Fprintf(part, "Ticket code: %s\r\n", ticket.TicketCode)
	fmt.Fprintf(part, "Starts: %s\r\n", event.StartTime.Format("02 Jan 2006 15:04"))
	if event.Location != "" {
		fmt.Fprintf(part, "Location: %s\r\n", event.Location)
	}
	fmt.Fprintf(part, "\r\nShow the attached QR code at the entrance.\r\n")

	if len(ticket.QRCode) > 0 {
		qrHeader := textproto.MIMEHeader{}
		qrHeader.Set("Content-Type", "image/png")
		qrHeader.Set("Content-Transfer-Encoding", "base64")
		qrHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ticket.TicketCode+".png"))
		qrPart, err := w.CreatePart(qrHeader)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(ticket.QRCode)
		for len(encoded) > 76 {
			fmt.Fprintf(qrPart, "%s\r\n", encoded[:76])
			encoded = encoded[76:]
		}
		fmt.Fprintf(qrPart, "%s\r\n", encoded)
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
