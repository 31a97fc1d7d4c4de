// Package email delivers workflow notifications by email.
//
// SMTPEmailService works with Mailhog in development and any standard SMTP
// relay in production. LogEmailService only logs and is used when no SMTP
// host is configured.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService sends notification emails.
type EmailService interface {
	// SendNotification tells one party about a workflow event.
	SendNotification(ctx context.Context, to domain.Recipient, ev domain.Event) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	// DefaultFromEmail is the default sender email for notifications.
	DefaultFromEmail = "noreply@rentcheck.app"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "RentCheck"
)

// =============================================================================
// Message Content
// =============================================================================

// Label turns an enum value such as "post_disputed" into "Post Disputed".
// Casers keep state, so each call gets its own.
func Label(s string) string {
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", ".", " ").Replace(s))
}

// subjects are keyed by event type. Events missing here fall back to the
// event's label.
var subjects = map[domain.EventType]string{
	domain.EventInspectionCreated:     "An inspection was requested for your rental",
	domain.EventInspectionPaid:        "Inspection payment received",
	domain.EventPreInspectionSubmit:   "Review the item's condition before pickup",
	domain.EventPreInspectionAccepted: "The renter accepted your pre-rental inspection",
	domain.EventDiscrepancyReported:   "The renter reported a discrepancy",
	domain.EventRentalStarted:         "Your rental has started",
	domain.EventPostInspectionSubmit:  "Review the returned item",
	domain.EventPostInspectionClosed:  "Your rental inspection is complete",
	domain.EventDisputeRaised:         "The owner disputed your return inspection",
	domain.EventDisputeUnderReview:    "Your dispute is under review",
	domain.EventDisputeResolved:       "Your dispute was resolved",
	domain.EventDisputeRejected:       "Your dispute was rejected",
}

// Subject returns the subject line for ev.
func Subject(ev domain.Event) string {
	if s, ok := subjects[ev.Type]; ok {
		return s
	}
	return Label(string(ev.Type))
}

// InspectionURL links to the inspection in the web app.
func InspectionURL(baseURL string, ev domain.Event) string {
	return fmt.Sprintf("%s/inspections/%s", strings.TrimSuffix(baseURL, "/"), ev.InspectionID)
}

// textBody renders the plain text part.
func textBody(to domain.Recipient, ev domain.Event, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", Label(string(to.Party)))
	fmt.Fprintf(&b, "%s.\n\n", Subject(ev))
	fmt.Fprintf(&b, "Inspection status: %s\n", Label(string(ev.Status)))
	if ev.DisputeID != nil {
		fmt.Fprintf(&b, "Dispute: %s\n", ev.DisputeID)
	}
	fmt.Fprintf(&b, "\nView the inspection: %s\n\nThanks,\nThe %s Team\n", link, DefaultFromName)
	return b.String()
}
