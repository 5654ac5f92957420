package conversation

import (
	"fmt"

	"github.com/taxline/whatsapp-engine/internal/whatsapp"
)

// Interactive reply IDs used across the state machine.
const (
	menuTaxQuestion  = "menu_tax_question"
	menuAppointment  = "menu_appointment"
	menuDocuments    = "menu_documents"
	menuRefundStatus = "menu_refund_status"
	menuSupport      = "menu_support"

	replyAskAnother        = "ask_another"
	replySpeakProfessional = "speak_professional"
	replyReturnMenu        = "return_menu"

	replyConfirmYes = "confirm_yes"
	replyConfirmNo  = "confirm_no"
)

const (
	greetingText = "Welcome to TaxLine! I can answer tax questions, book appointments with an advisor, collect your documents, and more."

	taxQuestionPrompt = "Sure - what would you like to know? Type your tax question and I'll do my best to help."

	appointmentDatePrompt    = "Let's book your appointment. What date works for you? Please send it as YYYY-MM-DD (for example 2025-11-30)."
	appointmentDateFormatErr = "That doesn't look like a valid date. Please send it as YYYY-MM-DD (for example 2025-11-30)."
	appointmentDatePastErr   = "That date has already passed. Please pick a future date (YYYY-MM-DD)."
	appointmentTimePrompt    = "Great. What time suits you? Please send it in 24-hour format as HH:MM (for example 14:30)."
	appointmentTimeFormatErr = "That doesn't look like a valid time. Please send it in 24-hour format as HH:MM (for example 14:30)."
	appointmentFailedText    = "Sorry - I couldn't save your appointment just now. Please tap a button again in a moment."

	documentUploadPrompt   = "Please send your documents as files or photos. When you're finished, type \"done\"."
	documentRedirectText   = "Please upload your documents as files or photos first, or send \"menu\" to go back."
	documentFlushFailedErr = "Sorry - I couldn't record your documents just now. Please type \"done\" again in a moment."

	supportPrompt     = "Tell me what's going on and I'll open a ticket with our support team."
	supportFailedText = "Sorry - I couldn't open your ticket just now. Please send your message again in a moment."

	refundNoFilingText = "I couldn't find a tax filing on record for this number. If you filed with us recently, it may still be processing."
	refundFailedText   = "Sorry - I couldn't look up your refund status just now. Please try again in a moment."

	documentNoneDoneText = "No problem - nothing received this time. Back to the main menu."

	taxAnswerFailedText = "Sorry - I couldn't process your question just now. Please send it again."

	loadFailedText = "Sorry - something went wrong on our side. Please send your message again in a moment."

	invalidChoiceText = "I didn't catch that. Please pick an option from the menu (1-5)."
	cannotProcessText = "Sorry, I can't process that kind of message. Send \"menu\" to see what I can help with."
	farewellText      = "Thanks for chatting with TaxLine. Send \"hi\" anytime to start again. Goodbye!"
)

// menuList is the interactive main menu. Row order matches the numeric
// shortcuts 1-5 accepted as free text.
func menuList() whatsapp.List {
	return whatsapp.List{
		Header: "TaxLine",
		Body:   "How can we help you today?",
		Footer: "You can also reply with a number (1-5).",
		Button: "View options",
		Sections: []whatsapp.Section{{
			Title: "Services",
			Rows: []whatsapp.Row{
				{ID: menuTaxQuestion, Title: "Ask a tax question", Description: "Get quick guidance"},
				{ID: menuAppointment, Title: "Book an appointment", Description: "Meet a tax advisor"},
				{ID: menuDocuments, Title: "Upload documents", Description: "Send us your paperwork"},
				{ID: menuRefundStatus, Title: "Check refund status", Description: "Latest filing update"},
				{ID: menuSupport, Title: "Talk to support", Description: "Open a support ticket"},
			},
		}},
	}
}

// menuChoiceByNumber maps the numeric text shortcuts onto list reply IDs.
var menuChoiceByNumber = map[string]string{
	"1": menuTaxQuestion,
	"2": menuAppointment,
	"3": menuDocuments,
	"4": menuRefundStatus,
	"5": menuSupport,
}

func taxFollowupButtons() whatsapp.Buttons {
	return whatsapp.Buttons{
		Body:   "Anything else on your mind?",
		Footer: "Tap an option",
		Buttons: []whatsapp.Button{
			{ID: replyAskAnother, Title: "Ask another"},
			{ID: replySpeakProfessional, Title: "Talk to a pro"},
			{ID: replyReturnMenu, Title: "Main menu"},
		},
	}
}

func appointmentConfirmButtons(date, timeOfDay string) whatsapp.Buttons {
	return whatsapp.Buttons{
		Body:   fmt.Sprintf("Please confirm your appointment on %s at %s.", date, timeOfDay),
		Footer: "Tap to answer",
		Buttons: []whatsapp.Button{
			{ID: replyConfirmYes, Title: "Yes, book it"},
			{ID: replyConfirmNo, Title: "No, change it"},
		},
	}
}

func appointmentBookedText(id, date, timeOfDay string) string {
	return fmt.Sprintf("You're booked! Appointment %s is scheduled for %s at %s. We'll remind you the day before.", id, date, timeOfDay)
}

func documentReceivedText(filename string, total int) string {
	return fmt.Sprintf("Got it - %s received (%d so far). Send more files, or type \"done\" when you're finished.", filename, total)
}

func documentsDoneText(total int) string {
	return fmt.Sprintf("All set - %d document(s) recorded for your file. Our team will review them shortly.", total)
}

func ticketOpenedText(id string) string {
	return fmt.Sprintf("Your support ticket %s is open. Our team will get back to you here as soon as possible.", id)
}

func professionalTicketText(id string) string {
	return fmt.Sprintf("I've asked a tax professional to follow up - ticket %s. You'll hear from them here.", id)
}

func refundStatusText(taxYear int, status string) string {
	return fmt.Sprintf("Your %d filing is currently: %s.", taxYear, status)
}
