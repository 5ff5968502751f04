package notification

import (
	"log"
	"unicode/utf8"
)

const maxMessageLen = 1024

// ShowBlockingError reports a fatal startup problem to a user who may not
// be looking at a terminal. It blocks until the message is dismissed where
// the platform has a dialog; elsewhere it only logs.
func ShowBlockingError(title, message string) {
	message = clip(message)
	log.Printf("%s: %s", title, message)
	showBlocking(title, message)
}

func clip(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
