package mailer

import "embed"

const (
	FromName             = "Shamba"
	maxRetries           = 3
	UserWelcomeTemplate  = "user_invitation.tmpl"
	OrderReceiptTemplate = "order_receipt.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
