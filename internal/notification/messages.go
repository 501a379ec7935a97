package notification

import (
	"fmt"
	"strings"
	"time"

	"jobflow_backend/internal/email"
	"jobflow_backend/internal/events"
)

const (
	defaultCustomerName = "there"
	defaultProName      = "Your Pro"
	costTBD             = "TBD"
	ctaOpenJob          = "Open job"
)

// message is one notification rendered for both channels.
type message struct {
	Subject string
	Notice  email.Notice
	Text    string
}

func newMessage(subject, heading string, paragraphs []string, details []email.Detail, text string) message {
	return message{
		Subject: subject,
		Notice: email.Notice{
			Heading:    heading,
			Paragraphs: paragraphs,
			Details:    details,
			CTALabel:   ctaOpenJob,
		},
		Text: text,
	}
}

// priceVerifiedMessage tells the customer about a price change inside the guarantee band.
func priceVerifiedMessage(e events.PriceVerificationRecorded, customerName, proName string) message {
	verified := formatUSD(e.VerifiedPriceCents)
	original := formatUSD(e.OriginalPriceCents)
	diff := e.VerifiedPriceCents - e.OriginalPriceCents

	var text string
	switch {
	case diff < 0:
		text = fmt.Sprintf("Hi %s! Good news: %s verified the actual scope is smaller than estimated. Your price is now %s (was %s). Savings of %s passed to you! Work will begin shortly.",
			customerName, proName, verified, original, formatUSD(-diff))
	case diff == 0:
		text = fmt.Sprintf("Hi %s, %s verified the job scope. Your price of %s is confirmed. Work will begin shortly.",
			customerName, proName, verified)
	default:
		text = fmt.Sprintf("Hi %s, %s verified the job scope. Price adjusted to %s (was %s, %s, %s difference - within our 10%% accuracy guarantee). Work will begin shortly.",
			customerName, proName, verified, original, formatSignedUSD(diff), formatPercent(percentOf(diff, e.OriginalPriceCents)))
	}

	return newMessage("Your job price has been verified", "Job price verified",
		[]string{text},
		[]email.Detail{{Label: "Verified price", Value: verified}, {Label: "Quoted price", Value: original}},
		text,
	)
}

// approvalRequestedMessage asks the customer to approve a change outside the guarantee band.
func approvalRequestedMessage(e events.PriceApprovalRequested, customerName, proName string) message {
	diff := e.VerifiedPriceCents - e.OriginalPriceCents
	scope, direction := "larger", "increase"
	if diff < 0 {
		scope, direction = "smaller", "decrease"
	}
	window := approvalWindow(e.ExpiresAt.Sub(e.OccurredAt()))

	text := fmt.Sprintf("Hi %s, %s verified the job scope. The actual work required is %s than estimated. Updated price: %s (was %s, %s, %s %s). Approve or decline in the app within %s, or the job will be released for rescheduling.",
		customerName, proName, scope,
		formatUSD(e.VerifiedPriceCents), formatUSD(e.OriginalPriceCents),
		formatSignedUSD(diff), formatPercent(e.PercentageDifference), direction, window)

	paragraphs := []string{text}
	if note := strings.TrimSpace(e.ProNotes); note != "" {
		paragraphs = append(paragraphs, "Note from your Pro: "+note)
	}
	return newMessage("Approval needed: updated price for your job", "Please approve the updated price",
		paragraphs,
		[]email.Detail{
			{Label: "Updated price", Value: formatUSD(e.VerifiedPriceCents)},
			{Label: "Quoted price", Value: formatUSD(e.OriginalPriceCents)},
			{Label: "Respond by", Value: e.ExpiresAt.UTC().Format("Jan 2, 15:04 MST")},
		},
		text,
	)
}

// approvalResolvedMessages returns the customer and pro messages for an answered or expired approval.
func approvalResolvedMessages(e events.PriceApprovalResolved, customerName, proName string) (customer, pro message) {
	verified := formatUSD(e.VerifiedPriceCents)
	original := formatUSD(e.OriginalPriceCents)

	switch e.Outcome {
	case events.ApprovalOutcomeApproved:
		customerText := fmt.Sprintf("Thanks %s, you approved the updated price of %s. %s will continue with the work.", customerName, verified, proName)
		proText := fmt.Sprintf("The customer approved the updated price of %s (was %s). You can proceed with the job.", verified, original)
		return newMessage("Updated price approved", "Updated price approved", []string{customerText}, nil, customerText),
			newMessage("Customer approved the updated price", "Price change approved", []string{proText}, nil, proText)

	case events.ApprovalOutcomeRejected:
		customerText := fmt.Sprintf("Hi %s, you declined the updated price of %s. The job has been cancelled and you will not be charged. You can reschedule any time in the app.", customerName, verified)
		proText := fmt.Sprintf("The customer declined the updated price of %s (quoted %s). The job has been cancelled: price adjustment rejected.", verified, original)
		if note := strings.TrimSpace(e.CustomerNotes); note != "" {
			proText += " Customer note: " + note
		}
		return newMessage("Job cancelled: price change declined", "Price change declined", []string{customerText}, nil, customerText),
			newMessage("Job cancelled: customer declined the price change", "Price change declined", []string{proText}, nil, proText)

	default:
		if !e.JobCancelled {
			customerText := fmt.Sprintf("Hi %s, the request to change your job price to %s has expired. Your quoted price of %s still applies.", customerName, verified, original)
			proText := fmt.Sprintf("The customer did not respond to the price change to %s in time. The quoted price of %s still applies.", verified, original)
			return newMessage("Price change request expired", "Price change request expired", []string{customerText}, nil, customerText),
				newMessage("Price change request expired", "Price change request expired", []string{proText}, nil, proText)
		}
		customerText := fmt.Sprintf("Hi %s, we did not hear back about the updated price of %s, so your job has been released. Please reschedule in the app at a time that suits you.", customerName, verified)
		proText := fmt.Sprintf("The customer did not respond to the updated price of %s in time. You have been released from this job.", verified)
		return newMessage("Please reschedule your job", "Your job needs rescheduling", []string{customerText}, nil, customerText),
			newMessage("Job released: price approval expired", "Price approval expired", []string{proText}, nil, proText)
	}
}

func partsFlaggedMessage(e events.PartsRequestFlagged, payerName string) message {
	cost := costTBD
	if e.EstimatedCostCents != nil {
		cost = formatUSD(*e.EstimatedCostCents)
	}
	return newMessage("Parts/Materials Needed for Your Job", "Parts/materials needed",
		[]string{
			fmt.Sprintf("Hi %s,", payerName),
			"Your Pro has identified parts/materials needed to continue your job.",
			"Please approve or deny this request in the app.",
		},
		[]email.Detail{{Label: "Description", Value: e.Description}, {Label: "Estimated Cost", Value: cost}},
		fmt.Sprintf("Your Pro needs parts/materials (%s) - %q. Please approve in the app.", cost, e.Description),
	)
}

func partsApprovedMessage(e events.PartsRequestApproved) message {
	text := fmt.Sprintf("Parts request approved! Supply method: %s. Source materials and update status when ready.", supplierLabel(e.SupplierSource))
	return newMessage("Parts Request Approved", "Parts request approved",
		[]string{
			"Your parts request has been approved.",
			"Please source the materials and mark them as obtained when ready.",
		},
		[]email.Detail{{Label: "Description", Value: e.Description}, {Label: "Supply method", Value: supplierLabel(e.SupplierSource)}},
		text,
	)
}

func partsDeniedMessage(e events.PartsRequestDenied) message {
	text := fmt.Sprintf("Parts request denied: %q. The job has resumed; continue with the original scope.", e.Description)
	details := []email.Detail{{Label: "Description", Value: e.Description}}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		text += " Reason: " + reason
		details = append(details, email.Detail{Label: "Reason", Value: reason})
	}
	return newMessage("Parts Request Denied", "Parts request denied",
		[]string{"Your parts request was denied and the job has resumed without the parts."},
		details,
		text,
	)
}

func partsSourcedMessage(e events.PartsRequestSourced) message {
	cost := formatUSD(e.ActualCostCents)
	return newMessage("Parts Sourced for Your Job", "Parts sourced",
		[]string{fmt.Sprintf("Your Pro has obtained the needed parts/materials (cost: %s). Installation will begin shortly.", cost)},
		[]email.Detail{{Label: "Description", Value: e.Description}},
		fmt.Sprintf("Parts sourced (%s). Your Pro will resume work shortly.", cost),
	)
}

func partsInstalledMessage() message {
	return newMessage("Parts Installed - Job Resumed", "Parts installed",
		[]string{"Parts have been installed and your job has resumed."},
		nil,
		"Parts installed! Your job has resumed.",
	)
}

func partsStaleMessage(e events.PartsRequestStale) message {
	if e.Status == "approved" {
		text := "Reminder: an approved parts request is still waiting to be sourced. Update its status in the app once the parts are in hand."
		return newMessage("Reminder: approved parts still need sourcing", "Parts still need sourcing", []string{text}, nil, text)
	}
	text := "Reminder: a parts request for your job is still waiting for your decision. The job stays paused until you approve or deny it in the app."
	return newMessage("Reminder: parts request awaiting approval", "Parts request awaiting approval", []string{text}, nil, text)
}

func supplierLabel(source string) string {
	switch source {
	case "pro":
		return "Pro sources the parts"
	case "pm":
		return "Supplied by property manager/customer"
	case "platform_partner":
		return "Platform partner supplier"
	default:
		return source
	}
}

func approvalWindow(d time.Duration) string {
	if d <= 0 {
		return "the approval window"
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if minutes%60 == 0 {
		hours := minutes / 60
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func formatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func formatSignedUSD(cents int64) string {
	if cents > 0 {
		return "+" + formatUSD(cents)
	}
	return formatUSD(cents)
}

func percentOf(diff, original int64) float64 {
	if original == 0 {
		return 0
	}
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(original) * 100
}

func formatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

func nameOr(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fallback
}
