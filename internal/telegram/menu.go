// Package telegram is the messaging transport: it drives the Bot API update
// loop, renders the reply-keyboard menus, routes user and admin messages to
// the services layer, and implements the Notifier contract.
//
// This file holds the menu vocabulary. Button labels double as reserved
// tokens: the funnel engine must never capture them as step data, so
// IsReservedLabel is handed to services.FunnelService at wiring time.
package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leadvane/adkey-backend/internal/domain"
	"github.com/leadvane/adkey-backend/internal/services"
)

// Main-menu button labels.
const (
	btnSubmitKey = "🔑 Submit a key"
	btnStatus    = "📊 My status"
	btnHelp      = "ℹ️ Help"
	btnBack      = "⬅️ Back"
)

// reservedLabels is the set of navigation tokens, lowercase.
var reservedLabels = map[string]struct{}{
	strings.ToLower(btnSubmitKey): {},
	strings.ToLower(btnStatus):    {},
	strings.ToLower(btnHelp):      {},
	strings.ToLower(btnBack):      {},
}

// IsReservedLabel reports whether input is a menu button label.
func IsReservedLabel(input string) bool {
	_, ok := reservedLabels[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// mainMenuKeyboard is the top-level reply keyboard.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSubmitKey),
			tgbotapi.NewKeyboardButton(btnStatus),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// choiceKeyboard renders a closed choice set two buttons per row, with Back.
func choiceKeyboard(choices []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(choices); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(choices[i])}
		if i+1 < len(choices) {
			row = append(row, tgbotapi.NewKeyboardButton(choices[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

// backKeyboard is shown on free-text steps.
func backKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBack)),
	)
	kb.ResizeKeyboard = true
	return kb
}

// stepPrompt returns the instruction for the step a funnel is awaiting.
func stepPrompt(step string) string {
	switch step {
	case domain.StepCategory:
		return "Choose the offer category:"
	case domain.StepGeography:
		return "Which country is the traffic from? Send a country code or name:"
	case domain.StepSource:
		return "Choose the source platform:"
	case domain.StepPrice:
		return "Send the conversion price (a positive number, e.g. 75.5):"
	case domain.StepKey:
		return "Paste your API key (a long string of letters, digits, dots, dashes or underscores):"
	}
	return "Use the menu below."
}

// stepKeyboard returns the keyboard matching a step's input kind.
func stepKeyboard(step string) tgbotapi.ReplyKeyboardMarkup {
	switch step {
	case domain.StepCategory:
		return choiceKeyboard(domain.Categories)
	case domain.StepSource:
		return choiceKeyboard(domain.SourcePlatforms)
	case domain.StepGeography, domain.StepPrice, domain.StepKey:
		return backKeyboard()
	}
	return mainMenuKeyboard()
}

// stepError maps a funnel validation sentinel to its corrective prompt.
// Unknown errors fall through to a generic retry line.
func stepError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrBadCategory):
		return "Please pick one of the categories on the keyboard."
	case errors.Is(err, services.ErrBadGeography):
		return "The country must not be empty. Send a country code like DE or US."
	case errors.Is(err, services.ErrBadSource):
		return "Please pick one of the platforms on the keyboard."
	case errors.Is(err, services.ErrBadPrice):
		return "That is not a valid price. Enter a positive number, e.g. 49.99."
	case errors.Is(err, services.ErrBadKey):
		return fmt.Sprintf("That does not look like an API key. Paste the full secret string (at least %d characters, letters/digits/._- only).", services.DefaultMinKeyRunes)
	}
	return "Could not process that, please try again."
}
