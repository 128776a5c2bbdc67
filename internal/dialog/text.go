package dialog

import (
	"fmt"
	"strings"

	"github.com/ent0n29/intake/internal/catalog"
	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/records"
	"github.com/ent0n29/intake/internal/schema"
	"github.com/ent0n29/intake/internal/validate"
)

const (
	msgMainMenu           = "Main menu"
	msgTryLater           = "Something went wrong. Please try again later."
	msgUnknownUser        = "User not found. Send /start to register."
	msgUnknownCommand     = "I don't understand that. Send /help for the list of commands."
	msgCatalogUnavailable = "The module catalog is temporarily unavailable. Please try again later."
	msgHaveRecord         = "You already have a saved questionnaire. What would you like to do?"
	msgNoRecord           = "No questionnaire found."
	msgFillIntro          = "Let's fill in your questionnaire. Send an empty message to skip optional fields, /cancel to stop."
	msgEditIntro          = "Editing your questionnaire. Send an empty message to keep the current value, /cancel to stop."
	msgNothingToCancel    = "There is no questionnaire in progress."
	msgCancelled          = "Questionnaire cancelled."
	msgNoSession          = "There is no questionnaire in progress. Choose fill to start one."
	msgNotComplete        = "The questionnaire is not finished yet."
	msgSaved              = "Questionnaire saved as a draft."
	msgSubmitted          = "Questionnaire submitted. Thank you!"
	msgSaveFailed         = "Could not save the questionnaire. Your answers are kept; please try again."
	msgDeleted            = "Questionnaire deleted."
	msgAccepted           = "Saved."
	msgReadyToSave        = "All fields are filled in. Choose save, submit or cancel."
)

const helpText = `Available commands:

/start - start working with the bot
/help - show this help
/profile - show your profile

Menu: catalog, fill, info, view, edit, delete, progress, save, submit, cancel

While a questionnaire is being filled, messages are answers.
Prefix commands with a slash then, e.g. /cancel or /progress.`

const infoText = `This bot collects applicant questionnaires.

You can register, fill in a questionnaire, save it as a draft and submit it.
Your data is used only for processing your application.`

func welcomeText(name string) string {
	if name == "" {
		return "Welcome!\n\nThis bot will help you fill in and save your questionnaire.\n\nChoose an action:"
	}
	return fmt.Sprintf("Welcome, %s!\n\nThis bot will help you fill in and save your questionnaire.\n\nChoose an action:", name)
}

func profileText(u records.User) string {
	var b strings.Builder
	b.WriteString("Your profile:\n\n")
	fmt.Fprintf(&b, "ID: %d\n", u.ExternalID)
	fmt.Fprintf(&b, "First name: %s\n", orDash(u.FirstName))
	fmt.Fprintf(&b, "Last name: %s\n", orDash(u.LastName))
	fmt.Fprintf(&b, "Username: %s\n", orDash(u.Username))
	fmt.Fprintf(&b, "Registered: %s", u.CreatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

func catalogText(items []catalog.Item) string {
	var b strings.Builder
	b.WriteString("Module contents\n")
	for _, it := range items {
		fmt.Fprintf(&b, "\n• %s\n", it.Description)
	}
	return b.String()
}

func fieldPrompt(def schema.FieldDefinition, previous any) string {
	prompt := def.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Enter %s:", labelOf(def))
	}
	if !def.Required {
		prompt += " (optional)"
	}
	if previous != nil {
		prompt += fmt.Sprintf("\nCurrent value: %v", previous)
	}
	return prompt
}

func progressText(p engine.Progress) string {
	return fmt.Sprintf("Progress: %d%%\nFields filled: %d/%d (required %d/%d)",
		p.Percent, p.Filled, p.Total, p.Collected, p.Required)
}

func reviewText(p engine.Progress) string {
	return progressText(p) + "\n\nThe questionnaire is ready. Save it as a draft or submit it."
}

func recordText(sch *schema.Schema, rec records.Record) string {
	var b strings.Builder
	b.WriteString("Your questionnaire\n\n")
	for _, f := range sch.Fields() {
		v, ok := rec.Data[f.Name]
		if !ok {
			fmt.Fprintf(&b, "• %s: not specified\n", labelOf(f))
			continue
		}
		fmt.Fprintf(&b, "• %s: %v\n", labelOf(f), v)
	}
	fmt.Fprintf(&b, "\nStatus: %s\n", rec.Status)
	fmt.Fprintf(&b, "Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Updated: %s", rec.UpdatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

func reasonText(reason string) string {
	switch reason {
	case validate.ReasonEmpty:
		return "This field is required."
	case validate.ReasonTooShort:
		return "That is too short."
	case validate.ReasonTooLong:
		return "That is too long."
	case validate.ReasonNotInteger:
		return "Please enter a whole number."
	case validate.ReasonOutOfRange:
		return "That number is out of the allowed range."
	case validate.ReasonInvalidPhone:
		return "That does not look like a phone number."
	case validate.ReasonInvalidEmail:
		return "That does not look like an email address."
	default:
		return "That value is not accepted."
	}
}

func labelOf(def schema.FieldDefinition) string {
	if def.Label != "" {
		return def.Label
	}
	return strings.ReplaceAll(def.Name, "_", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
