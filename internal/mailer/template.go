package mailer

import (
	"fmt"

	"github.com/mcclink/mcclink/internal/ads"
)

// Message is a rendered mail template.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// LinkRequestMessage asks a manager-account owner to authorize linking by
// following the generated OAuth link.
func LinkRequestMessage(mccID, link string) Message {
	formatted := ads.FormatID(mccID)

	return Message{
		Subject: "Link your MCC account",
		Text: fmt.Sprintf(
			"You requested to link a manager account to MCC %s.\n"+
				"Please follow this link to authorize: %s\n", formatted, link),
		HTML: fmt.Sprintf(
			"<p>You requested to link a manager account to MCC <strong>%s</strong>.</p>\n"+
				"<p>Please follow this link to authorize: <a href=%q>Link</a></p>\n", formatted, link),
	}
}
