package conversation

import "strings"

// ConfirmationPhrases are the phrasings that make a finished assistant
// message read like a confirmation request. The list is data, not control
// flow: matching only offers quick replies, it never drives a state
// transition, so over- or under-triggering is harmless. Override it to tune
// the affordance.
var ConfirmationPhrases = []string{
	"shall i proceed",
	"would you like me to create",
	"would you like me to proceed",
	"would you like me to continue",
	"ready to create",
	"do you want me to",
	"should i create",
	"should i proceed",
	"should i go ahead",
	"can i create",
	"can i proceed",
	"let me know if you'd like",
}

// LooksLikeConfirmationRequest reports whether text reads like the
// assistant asking for permission to act.
func LooksLikeConfirmationRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range ConfirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
