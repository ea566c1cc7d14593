package automation

import (
	"context"
	"strings"
)

// DialogState classifies the front window of the Live process. It is the
// sole signal of UI state: Live's windows expose no other inspectable
// structure to System Events.
type DialogState int

const (
	// DialogNone is the main arrangement/session window, which Live
	// reports with an empty title. Destructive shortcuts are NOT safe here.
	DialogNone DialogState = iota
	// DialogExport is the Export Audio/Video configuration dialog.
	DialogExport
	// DialogSave is the filename/location dialog.
	DialogSave
	// DialogUnknown is any other window. Treated exactly like DialogNone
	// for safety purposes.
	DialogUnknown
)

func (s DialogState) String() string {
	switch s {
	case DialogNone:
		return "none"
	case DialogExport:
		return "export"
	case DialogSave:
		return "save"
	default:
		return "unknown"
	}
}

// SafeForDestructive reports whether a select-all keystroke may be issued
// while this dialog is frontmost. Only the Save and Export dialogs qualify:
// both focus a text field, so Cmd+A selects text instead of tracks.
func (s DialogState) SafeForDestructive() bool {
	return s == DialogSave || s == DialogExport
}

// ClassifyTitle maps a window title to a DialogState. "Save" wins over
// "Export" when a title contains both.
func ClassifyTitle(title string) DialogState {
	switch {
	case strings.Contains(title, "Save"):
		return DialogSave
	case strings.Contains(title, "Export"):
		return DialogExport
	case title == "":
		return DialogNone
	default:
		return DialogUnknown
	}
}

// TitleReader is the single primitive the verifier needs.
type TitleReader interface {
	FrontWindowTitle(ctx context.Context) (bool, string)
}

// Verifier classifies the live front window. Every classification reads the
// title fresh: the UI transitions asynchronously relative to the automation
// calls that trigger it, so a cached state is worthless the moment it is
// stored.
type Verifier struct {
	titles TitleReader
}

// NewVerifier creates a verifier over the given title source.
func NewVerifier(titles TitleReader) *Verifier {
	return &Verifier{titles: titles}
}

// Classify reads the front window title and returns its dialog class along
// with the observed title. A failed title read classifies as DialogUnknown,
// which every caller treats as unsafe.
func (v *Verifier) Classify(ctx context.Context) (DialogState, string) {
	ok, title := v.titles.FrontWindowTitle(ctx)
	if !ok {
		return DialogUnknown, title
	}
	return ClassifyTitle(title), title
}

// SafeForDestructive re-classifies and reports whether a destructive
// keystroke may be issued right now.
func (v *Verifier) SafeForDestructive(ctx context.Context) bool {
	state, _ := v.Classify(ctx)
	return state.SafeForDestructive()
}
