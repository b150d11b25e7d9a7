package mail

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

// SendMail sends an email via SMTP. All callers treat delivery as best
// effort; a failed notification never fails the originating operation.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	log := logging.L()

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Warn("SMTP_SENDER not set, using default sender", zap.String("sender", sender))
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Error("SMTP send error", zap.String("to", to), zap.Error(err))
	} else {
		log.Info("email sent", zap.String("to", to), zap.String("addr", addr))
	}
	return err
}

// SendRegistrationConfirmed notifies the holder that their payment settled.
func SendRegistrationConfirmed(to string, reg *models.Registration) error {
	subject := "Inscricao confirmada - " + reg.ConfirmationCode
	body := fmt.Sprintf(
		"<p>Sua inscricao foi confirmada.</p>"+
			"<p>Codigo de confirmacao: <strong>%s</strong></p>"+
			"<p>Apresente este codigo na retirada do kit.</p>",
		reg.ConfirmationCode,
	)
	return SendMail(to, subject, body)
}

// SendTransferCompleted notifies the new holder after a completed transfer.
func SendTransferCompleted(to string, reg *models.Registration) error {
	subject := "Inscricao transferida para voce - " + reg.ConfirmationCode
	body := fmt.Sprintf(
		"<p>Uma inscricao foi transferida para voce.</p>"+
			"<p>Codigo de confirmacao: <strong>%s</strong></p>",
		reg.ConfirmationCode,
	)
	return SendMail(to, subject, body)
}
