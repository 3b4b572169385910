package formatter

import (
	"github.com/go-telegram/bot/models"
)

// BuildConsentKeyboard creates an inline keyboard with a single URL button to the consent page
func BuildConsentKeyboard(authURL string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Authorize", URL: authURL},
			},
		},
	}
}
