package export

import (
	"errors"
	"strings"
)

const defaultEmailMessage = "Please find the attached summary below."

var ErrNoRecipients = errors.New("Please enter at least one valid email address.")

// EmailDraft is the mail-client hand-off form.
type EmailDraft struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
}

// NewEmailDraft pre-fills the subject and message for a file.
func NewEmailDraft(fileName string) EmailDraft {
	return EmailDraft{
		Recipients: []string{""},
		Subject:    "Summary: " + BaseName(fileName),
		Message:    defaultEmailMessage,
	}
}

// ValidRecipients keeps trimmed entries that contain "@".
func (d EmailDraft) ValidRecipients() []string {
	var out []string
	for _, r := range d.Recipients {
		r = strings.TrimSpace(r)
		if r != "" && strings.Contains(r, "@") {
			out = append(out, r)
		}
	}
	return out
}

// Body is the message followed by the summary.
func (d EmailDraft) Body(summary string) string {
	return d.Message + "\n\n--- SUMMARY ---\n\n" + summary
}

// MailtoURL builds the mailto: link, or ErrNoRecipients when none survive filtering.
func (d EmailDraft) MailtoURL(summary string) (string, error) {
	recipients := d.ValidRecipients()
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}
	return "mailto:" + strings.Join(recipients, ",") +
		"?subject=" + EncodeURIComponent(d.Subject) +
		"&body=" + EncodeURIComponent(d.Body(summary)), nil
}
