package conversation

import "testing"

func TestLooksLikeConfirmationRequest(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Here's the plan: dinner Saturday at 7pm. Shall I proceed?", true},
		{"I can set that up. Would you like me to proceed?", true},
		{"Everything looks good. Ready to create the event.", true},
		{"SHALL I PROCEED with these details?", true},
		{"Let me know if you'd like any changes.", true},
		{"Your calendar is free on Saturday afternoon.", false},
		{"I've added three guests to the list.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeConfirmationRequest(tt.content); got != tt.want {
			t.Errorf("LooksLikeConfirmationRequest(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestActivityLabel(t *testing.T) {
	if got := ActivityLabel("createEvent"); got != "Creating your event" {
		t.Errorf("createEvent label = %q", got)
	}
	if got := ActivityLabel("someNewTool"); got != "Running someNewTool" {
		t.Errorf("fallback label = %q", got)
	}
}
