package automation

import (
	"context"
	"fmt"
)

// Driver is the set of atomic UI actions the export machine sequences. Each
// call is a single fallible OS-level action with no retry logic of its own.
type Driver interface {
	Activate(ctx context.Context) (bool, string)
	FrontmostApp(ctx context.Context) (bool, string)
	FrontWindowTitle(ctx context.Context) (bool, string)
	OpenExportDialog(ctx context.Context) (bool, string)
	Dismiss(ctx context.Context) (bool, string)
	PressConfirm(ctx context.Context) (bool, string)
	PressTab(ctx context.Context, count int) (bool, string)
	TypeText(ctx context.Context, text string) (bool, string)
	SelectAllInField(ctx context.Context) error
	GoToFolder(ctx context.Context, path string) (bool, string)
	FocusedFieldValue(ctx context.Context) (bool, string)
}

// Automator implements Driver against a live application via AppleScript.
// All keystrokes go to whatever currently has focus; the safety checks live
// in the Verifier and the export machine, not here.
type Automator struct {
	run Runner

	// AppName is the full application name used for activation, e.g.
	// "Ableton Live 12 Suite". ProcessName is the System Events process
	// name, which Live reports simply as "Live".
	AppName     string
	ProcessName string
}

// NewAutomator creates an automator for the given application.
func NewAutomator(run Runner, appName, processName string) *Automator {
	if appName == "" {
		appName = "Ableton Live 12 Suite"
	}
	if processName == "" {
		processName = "Live"
	}
	return &Automator{run: run, AppName: appName, ProcessName: processName}
}

// Activate brings the application to the foreground.
func (a *Automator) Activate(ctx context.Context) (bool, string) {
	script := fmt.Sprintf(`
tell application "%s"
	activate
end tell
delay 0.5
`, escapeScriptString(a.AppName))
	return a.run.Run(ctx, script)
}

// FrontmostApp returns the name of the process that currently owns focus.
func (a *Automator) FrontmostApp(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	set frontApp to name of first application process whose frontmost is true
	return frontApp
end tell
`
	return a.run.Run(ctx, script)
}

// FrontWindowTitle returns the title of the application's front window.
// Live uses non-native windows, so the main arrangement window reports an
// empty title and dialogs report names like "Save" or "Export Audio/Video".
func (a *Automator) FrontWindowTitle(ctx context.Context) (bool, string) {
	script := fmt.Sprintf(`
tell application "System Events"
	tell process "%s"
		return name of front window
	end tell
end tell
`, escapeScriptString(a.ProcessName))
	return a.run.Run(ctx, script)
}

// OpenExportDialog sends Cmd+Shift+R, Live's Export Audio/Video shortcut.
func (a *Automator) OpenExportDialog(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	keystroke "r" using {shift down, command down}
end tell
delay 1.5
`
	return a.run.Run(ctx, script)
}

// Dismiss sends Escape (key code 53). Best-effort; callers treat failure as
// non-fatal.
func (a *Automator) Dismiss(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	key code 53
end tell
delay 0.3
`
	return a.run.Run(ctx, script)
}

// PressConfirm sends Return to the focused control.
func (a *Automator) PressConfirm(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	keystroke return
end tell
`
	return a.run.Run(ctx, script)
}

// PressTab sends Tab the given number of times. Tab is the neutral commit
// key inside dialogs: it confirms a field edit without triggering the
// dialog's default button.
func (a *Automator) PressTab(ctx context.Context, count int) (bool, string) {
	if count < 1 {
		count = 1
	}
	script := fmt.Sprintf(`
tell application "System Events"
	repeat %d times
		keystroke tab
		delay 0.1
	end repeat
end tell
`, count)
	return a.run.Run(ctx, script)
}

// PressSpace sends Space, which toggles the focused checkbox or button.
func (a *Automator) PressSpace(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	keystroke space
end tell
`
	return a.run.Run(ctx, script)
}

// PressDown sends the down arrow (key code 125) to step through a focused
// list or popup.
func (a *Automator) PressDown(ctx context.Context) (bool, string) {
	script := `
tell application "System Events"
	key code 125
end tell
`
	return a.run.Run(ctx, script)
}

// TypeText types literal text into the focused control.
func (a *Automator) TypeText(ctx context.Context, text string) (bool, string) {
	script := fmt.Sprintf(`
tell application "System Events"
	keystroke "%s"
end tell
`, escapeScriptString(text))
	return a.run.Run(ctx, script)
}

// SelectAllInField selects the content of the focused text field with Cmd+A.
// The script re-reads the front window title and refuses to send the
// keystroke unless a Save or Export dialog is showing: Cmd+A on the
// arrangement selects every track, and a following keystroke would replace
// them.
func (a *Automator) SelectAllInField(ctx context.Context) error {
	script := fmt.Sprintf(`
tell application "System Events"
	tell process "%s"
		set frontWindow to name of front window
		if frontWindow contains "Save" or frontWindow contains "Export" then
			keystroke "a" using {command down}
			delay 0.1
		else
			error "not in a dialog window - refusing select-all"
		end if
	end tell
end tell
`, escapeScriptString(a.ProcessName))
	ok, detail := a.run.Run(ctx, script)
	if !ok {
		return fmt.Errorf("select-all refused: %s", detail)
	}
	return nil
}

// SelectAllAndDelete is intentionally never executed. The keystroke
// sequence deletes every track when focus is on the arrangement, and no
// caller has a legitimate use for it; SelectAllInField plus TypeText covers
// the text-field case.
func (a *Automator) SelectAllAndDelete(ctx context.Context) error {
	return fmt.Errorf("select-all-and-delete can destroy the arrangement: %w", ErrDisabledOperation)
}

// GoToFolder navigates a save dialog to the given path via the Cmd+Shift+G
// "Go to Folder" sheet. The export itself is performed by Live, so the
// output location can only be chosen through its dialog.
func (a *Automator) GoToFolder(ctx context.Context, path string) (bool, string) {
	script := fmt.Sprintf(`
tell application "System Events"
	keystroke "g" using {shift down, command down}
	delay 0.5
	keystroke "%s"
	delay 0.3
	keystroke return
	delay 0.5
end tell
`, escapeScriptString(path))
	return a.run.Run(ctx, script)
}

// FocusedFieldValue reads back the value of the control that currently has
// keyboard focus. Used to verify numeric range entry.
func (a *Automator) FocusedFieldValue(ctx context.Context) (bool, string) {
	script := fmt.Sprintf(`
tell application "System Events"
	tell process "%s"
		set focusedField to value of attribute "AXFocusedUIElement"
		return value of focusedField
	end tell
end tell
`, escapeScriptString(a.ProcessName))
	return a.run.Run(ctx, script)
}
