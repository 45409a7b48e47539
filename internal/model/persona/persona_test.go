package persona

import (
	"strings"
	"testing"
)

func TestMockReplyEchoesMessage(t *testing.T) {
	p := CaptainFocus()
	reply := p.MockReply("what is photosynthesis?")
	if !strings.Contains(reply, `"what is photosynthesis?"`) {
		t.Fatalf("mock reply does not echo message: %s", reply)
	}
	if !strings.Contains(reply, "Captain Focus") {
		t.Fatalf("mock reply lost persona voice: %s", reply)
	}
}

func TestCaptainFocusSections(t *testing.T) {
	p := CaptainFocus()
	if len(p.Sections) != 5 {
		t.Fatalf("expected 5 context sections, got %d", len(p.Sections))
	}
	if p.SystemPrompt == "" || p.WelcomeMessage == "" {
		t.Fatal("persona prompt fields must be populated")
	}
}
