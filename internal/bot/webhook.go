package bot

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Handler returns the HTTP handler for incoming Twilio messages.
func (b *Bot) Handler() http.HandlerFunc {
	return b.handleIncomingMessage
}

// handleIncomingMessage processes Twilio webhook POST requests.
func (b *Bot) handleIncomingMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		b.logger.Warn("webhook parse error", zap.Error(err))
		b.writeTwilioResponse(w, "Sorry, I couldn't understand that request.")
		return
	}

	from := r.FormValue("From")
	body := strings.TrimSpace(r.FormValue("Body"))
	if from == "" || body == "" {
		b.writeTwilioResponse(w, "I need a message to work with. Please try again.")
		return
	}

	// Twilio prepends whatsapp: to the number.
	chatID := strings.TrimPrefix(from, "whatsapp:")

	if strings.HasPrefix(body, "/") {
		b.handleCommand(w, chatID, body)
		return
	}

	reply, err := b.ProcessMessage(r.Context(), chatID, body)
	if err != nil {
		b.logger.Error("turn failed", zap.Error(err), zap.String("chat_id", chatID))
		b.writeTwilioResponse(w, msgTurnFailed)
		return
	}

	out := reply.Text
	if reply.Monospace {
		out = "```\n" + out + "\n```"
	}
	b.writeTwilioResponse(w, out)
}

// handleCommand deals with the small slash-command surface: account
// creation and a help fallback for anything else.
func (b *Bot) handleCommand(w http.ResponseWriter, chatID, body string) {
	fields := strings.Fields(body)
	if fields[0] != "/start" {
		b.writeTwilioResponse(w,
			"Available commands:\n/start <username>: Create a new account with the given username.")
		return
	}

	if len(fields) < 2 {
		b.writeTwilioResponse(w, "Please provide a username, e.g. \"/start alex\".")
		return
	}
	username := strings.Join(fields[1:], " ")

	exists, err := b.store.AccountExists(chatID)
	if err != nil {
		b.logger.Error("account lookup failed", zap.Error(err), zap.String("chat_id", chatID))
		b.writeTwilioResponse(w, msgTurnFailed)
		return
	}
	if exists {
		b.writeTwilioResponse(w, "You have already created an account.")
		return
	}

	if err := b.store.CreateAccount(username, chatID); err != nil {
		b.logger.Error("account creation failed", zap.Error(err), zap.String("chat_id", chatID))
		b.writeTwilioResponse(w, msgTurnFailed)
		return
	}
	b.writeTwilioResponse(w, fmt.Sprintf(
		"Welcome %s! I will do my best to help you keep track of any deadlines!", username))
}

func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Error("twilio response encode failed", zap.Error(err))
	}
}
