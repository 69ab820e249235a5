// Package notify sends invitation emails through Resend.
//
// Handlers depend on Notifier, which delivers in the background so a slow or failing
// mail provider never delays or fails the invitation request itself.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/safego"
	"github.com/clubroom/clubroom/internal/telemetry"
)

const sendTimeout = 15 * time.Second

// Invitation describes one invitation email
type Invitation struct {
	To          string
	InviteeName string
	ClubName    string
}

// Sender delivers invitation emails
type Sender interface {
	SendInvitation(ctx context.Context, inv Invitation) error
}

type resendSender struct {
	client *resend.Client
	from   string
	appURL string
}

// NewResendSender creates a Sender backed by the Resend API. from must belong to a
// domain verified in Resend.
func NewResendSender(apiKey, from, appURL string) Sender {
	return &resendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		appURL: appURL,
	}
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Arial,Helvetica,sans-serif;">
  <p>{{if .InviteeName}}{{.InviteeName}}님, {{end}}<strong>{{.ClubName}}</strong> 동아리에서 초대가 도착했습니다.</p>
  <p><a href="{{.Link}}">초대 확인하기</a></p>
</body>
</html>`))

// RenderInvitation returns the subject and HTML body of an invitation email
func RenderInvitation(inv Invitation, appURL string) (string, string, error) {
	var buf bytes.Buffer
	err := invitationTemplate.Execute(&buf, struct {
		Invitation
		Link string
	}{inv, strings.TrimRight(appURL, "/") + "/invitations"})
	if err != nil {
		return "", "", fmt.Errorf("failed to render invitation email: %w", err)
	}
	return fmt.Sprintf("[%s] 동아리 초대", inv.ClubName), buf.String(), nil
}

func (s *resendSender) SendInvitation(ctx context.Context, inv Invitation) error {
	subject, html, err := RenderInvitation(inv, s.appURL)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("clubroom <%s>", s.from),
		To:      []string{inv.To},
		Subject: subject,
		Html:    html,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send invitation email: %w", err)
	}
	return nil
}

// Notifier dispatches invitation emails in the background. A nil *Notifier is valid
// and sends nothing, which is how disabled notifications are represented.
type Notifier struct {
	sender Sender
	done   func()
}

// New returns a Notifier for sender
func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// FromConfig returns nil when notifications are disabled
func FromConfig(cfg *config.NotificationsConfig) *Notifier {
	if !cfg.Enabled {
		return nil
	}
	return New(NewResendSender(cfg.ResendAPIKey, cfg.From, cfg.AppURL))
}

// InvitationCreated queues an invitation email. Delivery failures are logged and
// counted, never returned.
func (n *Notifier) InvitationCreated(inv Invitation) {
	if n == nil {
		return
	}
	if inv.To == "" {
		telemetry.InvitationEmailsTotal.WithLabelValues("skipped").Inc()
		return
	}

	safego.Go("invitation-email", func() {
		if n.done != nil {
			defer n.done()
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := n.sender.SendInvitation(ctx, inv); err != nil {
			telemetry.InvitationEmailsTotal.WithLabelValues("error").Inc()
			slog.Warn("invitation email failed", "club", inv.ClubName, "error", err)
			return
		}
		telemetry.InvitationEmailsTotal.WithLabelValues("sent").Inc()
		slog.Debug("invitation email sent", "club", inv.ClubName)
	})
}
