package conversation

const activityThinking = "Thinking"

// activityLabels maps tool names to the activity line shown while they run
var activityLabels = map[string]string{
	"createEvent":       "Creating your event",
	"updateEvent":       "Updating your event",
	"deleteEvent":       "Removing your event",
	"listEvents":        "Looking through your events",
	"checkAvailability": "Checking availability",
	"inviteGuests":      "Sending invitations",
	"suggestTimes":      "Finding times that work",
}

// ActivityLabel returns the human label for a running tool
func ActivityLabel(toolName string) string {
	if label, ok := activityLabels[toolName]; ok {
		return label
	}
	return "Running " + toolName
}
