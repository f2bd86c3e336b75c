package sendapprovalnotifications

import (
	"fmt"
	"html"
)

const approvalSubject = "Your OPAS seller account has been approved"

func approvalText(sellerID, batchID string) string {
	return fmt.Sprintf(
		"Good news! Your seller registration (ID %s) has been approved.\n\n"+
			"You can now sign in to OPAS and start listing your produce.\n\n"+
			"Reference: %s\n", sellerID, batchID)
}

func approvalHTML(sellerID, batchID string) string {
	return fmt.Sprintf(
		"<p>Good news! Your seller registration (ID <strong>%s</strong>) has been approved.</p>"+
			"<p>You can now sign in to OPAS and start listing your produce.</p>"+
			"<p style=\"color:#888\">Reference: %s</p>",
		html.EscapeString(sellerID), html.EscapeString(batchID))
}

func approvalSMS(sellerID string) string {
	return fmt.Sprintf("OPAS: your seller account %s is approved. Sign in to start listing.", sellerID)
}
