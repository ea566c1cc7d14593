package automation

import (
	"context"
	"math/rand"
	"testing"
)

func TestClassifyTitle(t *testing.T) {
	tests := []struct {
		title string
		want  DialogState
	}{
		{"", DialogNone},
		{"Export Audio/Video", DialogExport},
		{"Save", DialogSave},
		{"Save As", DialogSave},
		{"Preferences", DialogUnknown},
		{"Untitled Window", DialogUnknown},
		// "Save" beats "Export" when a title carries both.
		{"Export - Save File", DialogSave},
		{"Save Export Settings", DialogSave},
	}
	for _, tt := range tests {
		if got := ClassifyTitle(tt.title); got != tt.want {
			t.Errorf("ClassifyTitle(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestSafeForDestructive(t *testing.T) {
	if DialogNone.SafeForDestructive() {
		t.Error("main window must never be safe for destructive keystrokes")
	}
	if DialogUnknown.SafeForDestructive() {
		t.Error("unknown window must never be safe for destructive keystrokes")
	}
	if !DialogSave.SafeForDestructive() {
		t.Error("save dialog should be safe for destructive keystrokes")
	}
	if !DialogExport.SafeForDestructive() {
		t.Error("export dialog should be safe for destructive keystrokes")
	}
}

// Every possible title maps to exactly one of the four states, and only
// titles naming Save or Export ever unlock destructive actions.
func TestClassifyTitleNeverUnsafe(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ /-_0123456789")
	for i := 0; i < 100; i++ {
		runes := make([]rune, rng.Intn(24))
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		title := string(runes)

		state := ClassifyTitle(title)
		switch state {
		case DialogNone, DialogExport, DialogSave, DialogUnknown:
		default:
			t.Fatalf("ClassifyTitle(%q) returned out-of-range state %d", title, state)
		}
		if state.SafeForDestructive() {
			if !contains(title, "Save") && !contains(title, "Export") {
				t.Errorf("ClassifyTitle(%q) unlocked destructive actions without a dialog marker", title)
			}
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type titleFunc func() (bool, string)

func (f titleFunc) FrontWindowTitle(ctx context.Context) (bool, string) { return f() }

func TestVerifierFailedReadIsUnknown(t *testing.T) {
	v := NewVerifier(titleFunc(func() (bool, string) {
		return false, "osascript error"
	}))
	state, _ := v.Classify(context.Background())
	if state != DialogUnknown {
		t.Errorf("failed title read classified as %v, want DialogUnknown", state)
	}
	if v.SafeForDestructive(context.Background()) {
		t.Error("failed title read must not be safe for destructive keystrokes")
	}
}

func TestVerifierReadsFresh(t *testing.T) {
	titles := []string{"Export Audio/Video", "Save"}
	i := 0
	v := NewVerifier(titleFunc(func() (bool, string) {
		title := titles[i%len(titles)]
		i++
		return true, title
	}))

	first, _ := v.Classify(context.Background())
	second, _ := v.Classify(context.Background())
	if first != DialogExport || second != DialogSave {
		t.Errorf("verifier cached state across calls: got %v then %v", first, second)
	}
}
