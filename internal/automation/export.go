package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Step names one completed action of an export attempt. The ordered step
// list is diagnostic only; it never influences control flow.
type Step string

const (
	StepActivated            Step = "activated"
	StepVerifiedFrontmost    Step = "verified_frontmost"
	StepOpenedExportDialog   Step = "opened_export_dialog"
	StepVerifiedExportDialog Step = "verified_export_dialog"
	StepSetRange             Step = "set_range"
	StepClickedExport        Step = "clicked_export"
	StepVerifiedSaveDialog   Step = "verified_save_dialog"
	StepNavigatedToFolder    Step = "navigated_to_folder"
	StepTypedFilename        Step = "typed_filename"
	StepHandledSubconfirm    Step = "handled_subconfirm"
	StepStartedExport        Step = "started_export"
)

// rangeTolerance is how far a read-back range value may sit from the typed
// one; the dialog rounds to whole bars.
const rangeTolerance = 0.5

// abortDismissals is how many Escape presses the abort path issues. One
// dismissal can itself surface another dialog, so a single press is not
// enough to reliably land back on the main window.
const abortDismissals = 3

// RenderRange is an explicit export range in bars.
type RenderRange struct {
	Start  float64
	Length float64
}

// Request describes one export attempt. It is immutable for the duration of
// the attempt.
type Request struct {
	// Filename without extension.
	Filename string
	// OutputDir is navigated to inside the save dialog when non-empty.
	OutputDir string
	// Range, when set, is entered into the dialog's start/length fields.
	Range *RenderRange
	// Extension of the rendered file, without dot. Defaults to "wav".
	Extension string
}

func (r Request) extension() string {
	if r.Extension == "" {
		return "wav"
	}
	return r.Extension
}

// Outcome is the single result of an export attempt. Exactly one Outcome is
// produced per Request; there are no partial results.
type Outcome struct {
	Success  bool
	Filename string
	Message  string
	// FailedStep is the last step that completed before the failure, empty
	// when the attempt failed before its first step.
	FailedStep Step
	Steps      []Step
}

// Options tunes the machine's timing. Every wait is an explicit parameter
// so tests can drive the machine on a simulated clock.
type Options struct {
	// ProcessName is what the frontmost-app check expects to observe.
	ProcessName string
	// ActivationRetries bounds how often activation is re-attempted before
	// giving up; ActivationBackoff is the pause between attempts.
	ActivationRetries int
	ActivationBackoff time.Duration
	// SettleDelay is the pause after activation, DialogDelay the pause
	// after a keystroke that opens or confirms a dialog.
	SettleDelay time.Duration
	DialogDelay time.Duration
	// PollInterval and CompletionTimeout bound the completion wait;
	// ProgressInterval throttles progress notifications during it.
	PollInterval      time.Duration
	CompletionTimeout time.Duration
	ProgressInterval  time.Duration
	// OnProgress is invoked during long renders. Informational only.
	OnProgress func(elapsed time.Duration)
}

func (o Options) withDefaults() Options {
	if o.ProcessName == "" {
		o.ProcessName = "Live"
	}
	if o.ActivationRetries <= 0 {
		o.ActivationRetries = 3
	}
	if o.ActivationBackoff <= 0 {
		o.ActivationBackoff = 500 * time.Millisecond
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.DialogDelay <= 0 {
		o.DialogDelay = time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = 120 * time.Second
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 10 * time.Second
	}
	if o.OnProgress == nil {
		o.OnProgress = func(elapsed time.Duration) {
			slog.Info("Export still rendering", "elapsed", elapsed.Round(time.Second))
		}
	}
	return o
}

// machine states. The flow is linear with branches after the export
// confirmation; any verification mismatch jumps straight to stateFailed.
type state int

const (
	stateActivating state = iota
	stateOpeningExport
	stateSettingRange
	stateConfirmingExport
	stateEnteringFilename
	stateHandlingSubconfirm
	stateStartingExport
	stateWaitingCompletion
	stateSucceeded
	stateFailed
)

// Machine drives one export attempt end to end, re-verifying the dialog
// class before every risky action and leaving the application on the main
// window on any failure. One Machine handles one attempt at a time; callers
// must not run overlapping attempts, since the application has a single
// window focus.
type Machine struct {
	driver Driver
	verify *Verifier
	opts   Options

	now   func() time.Time
	sleep func(time.Duration)
}

// NewMachine creates a machine over the given driver.
func NewMachine(driver Driver, opts Options) *Machine {
	return &Machine{
		driver: driver,
		verify: NewVerifier(driver),
		opts:   opts.withDefaults(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// attempt carries the mutable state of one export run.
type attempt struct {
	req     Request
	steps   []Step
	failure error
}

func (a *attempt) complete(s Step) {
	a.steps = append(a.steps, s)
}

func (a *attempt) lastStep() Step {
	if len(a.steps) == 0 {
		return ""
	}
	return a.steps[len(a.steps)-1]
}

// Export runs one attempt. It never returns an error and never panics
// across this boundary: every failure, including internal ones, is caught,
// translated into a failure Outcome and followed by the abort path.
func (m *Machine) Export(ctx context.Context, req Request) (out Outcome) {
	att := &attempt{req: req}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Export attempt panicked", "panic", r)
			m.abort(ctx)
			att.failure = fmt.Errorf("internal error: %v", r)
			out = m.failOutcome(att)
		}
	}()

	slog.Info("Starting export", "filename", req.Filename, "output_dir", req.OutputDir)

	current := stateActivating
	for {
		switch current {
		case stateActivating:
			current = m.activate(ctx, att)
		case stateOpeningExport:
			current = m.openExport(ctx, att)
		case stateSettingRange:
			current = m.setRange(ctx, att)
		case stateConfirmingExport:
			current = m.confirmExport(ctx, att)
		case stateEnteringFilename:
			current = m.enterFilename(ctx, att)
		case stateHandlingSubconfirm:
			current = m.handleSubconfirm(ctx, att)
		case stateStartingExport:
			current = m.startExport(ctx, att)
		case stateWaitingCompletion:
			current = m.waitCompletion(ctx, att)
		case stateSucceeded:
			filename := req.Filename + "." + req.extension()
			slog.Info("Export complete", "filename", filename)
			return Outcome{
				Success:  true,
				Filename: filename,
				Message:  fmt.Sprintf("Export complete: %s", filename),
				Steps:    att.steps,
			}
		case stateFailed:
			m.abort(ctx)
			return m.failOutcome(att)
		}
	}
}

func (m *Machine) failOutcome(att *attempt) Outcome {
	step := att.lastStep()
	msg := fmt.Sprintf("Export failed: %v", att.failure)
	if step != "" {
		msg = fmt.Sprintf("Export failed after step %q: %v", step, att.failure)
	}
	slog.Error("Export failed", "step", string(step), "error", att.failure)
	return Outcome{
		Success:    false,
		Filename:   att.req.Filename,
		Message:    msg,
		FailedStep: step,
		Steps:      att.steps,
	}
}

func (m *Machine) fail(att *attempt, err error) state {
	att.failure = err
	return stateFailed
}

// abort presses Escape a fixed number of times to unwind whatever dialog is
// showing. Best-effort: a failed dismissal is not an error anyone can act
// on at this point.
func (m *Machine) abort(ctx context.Context) {
	slog.Warn("Aborting export attempt, dismissing dialogs")
	for i := 0; i < abortDismissals; i++ {
		m.driver.Dismiss(ctx)
		m.sleep(200 * time.Millisecond)
	}
}

func (m *Machine) activate(ctx context.Context, att *attempt) state {
	var detail string
	for i := 1; i <= m.opts.ActivationRetries; i++ {
		ok, d := m.driver.Activate(ctx)
		if !ok {
			detail = d
			slog.Debug("Activation attempt failed", "attempt", i, "detail", d)
		} else {
			if att.lastStep() != StepActivated {
				att.complete(StepActivated)
			}
			m.sleep(m.opts.SettleDelay)

			okFront, app := m.driver.FrontmostApp(ctx)
			if okFront && app == m.opts.ProcessName {
				att.complete(StepVerifiedFrontmost)
				return stateOpeningExport
			}
			detail = fmt.Sprintf("frontmost application is %q", app)
			slog.Debug("Frontmost check failed", "attempt", i, "frontmost", app)
		}
		if i < m.opts.ActivationRetries {
			m.sleep(m.opts.ActivationBackoff)
		}
	}
	return m.fail(att, &ActivationError{Attempts: m.opts.ActivationRetries, Detail: detail})
}

func (m *Machine) openExport(ctx context.Context, att *attempt) state {
	ok, detail := m.driver.OpenExportDialog(ctx)
	if !ok {
		return m.fail(att, fmt.Errorf("failed to send export shortcut: %s", detail))
	}
	att.complete(StepOpenedExportDialog)
	m.sleep(m.opts.DialogDelay)

	dialog, title := m.verify.Classify(ctx)
	if dialog != DialogExport {
		return m.fail(att, &DialogMismatchError{
			Step: StepOpenedExportDialog, Expected: DialogExport, Observed: dialog, Title: title,
		})
	}
	att.complete(StepVerifiedExportDialog)

	if att.req.Range != nil {
		return stateSettingRange
	}
	return stateConfirmingExport
}

// setRange types the requested start/length into the dialog's range fields.
// Each value is committed with Tab, never Return: Return also triggers the
// dialog's default button and would start the export prematurely.
func (m *Machine) setRange(ctx context.Context, att *attempt) state {
	if ok, detail := m.driver.PressTab(ctx, 1); !ok {
		return m.fail(att, fmt.Errorf("failed to focus range fields: %s", detail))
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"start", att.req.Range.Start},
		{"length", att.req.Range.Length},
	}
	for _, f := range fields {
		if err := m.fillRangeField(ctx, f.name, f.value); err != nil {
			return m.fail(att, err)
		}
	}

	att.complete(StepSetRange)
	return stateConfirmingExport
}

func (m *Machine) fillRangeField(ctx context.Context, name string, value float64) error {
	dialog, title := m.verify.Classify(ctx)
	if !dialog.SafeForDestructive() {
		return &DialogMismatchError{
			Step: StepSetRange, Expected: DialogExport, Observed: dialog, Title: title,
		}
	}
	if err := m.driver.SelectAllInField(ctx); err != nil {
		return err
	}

	text := strconv.FormatFloat(value, 'f', -1, 64)
	if ok, detail := m.driver.TypeText(ctx, text); !ok {
		return fmt.Errorf("failed to type %s value: %s", name, detail)
	}

	ok, observed := m.driver.FocusedFieldValue(ctx)
	if !ok {
		return fmt.Errorf("failed to read %s field back: %s", name, observed)
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(observed), 64)
	if err != nil || math.Abs(parsed-value) > rangeTolerance {
		return &RangeMismatchError{Field: name, Expected: value, Observed: observed}
	}

	if ok, detail := m.driver.PressTab(ctx, 1); !ok {
		return fmt.Errorf("failed to commit %s field: %s", name, detail)
	}
	slog.Debug("Range field set", "field", name, "value", text, "read_back", observed)
	return nil
}

func (m *Machine) confirmExport(ctx context.Context, att *attempt) state {
	if ok, detail := m.driver.PressConfirm(ctx); !ok {
		return m.fail(att, fmt.Errorf("failed to confirm export dialog: %s", detail))
	}
	att.complete(StepClickedExport)
	m.sleep(m.opts.DialogDelay)

	dialog, title := m.verify.Classify(ctx)
	switch dialog {
	case DialogSave:
		att.complete(StepVerifiedSaveDialog)
		return stateEnteringFilename
	case DialogExport:
		// Newer Live versions skip the save dialog entirely; a persisting
		// Export title is a sub-confirmation ("stop playback?" etc.).
		slog.Debug("Save dialog not shown, taking sub-confirmation path", "title", title)
		return stateHandlingSubconfirm
	default:
		return m.fail(att, &DialogMismatchError{
			Step: StepClickedExport, Expected: DialogSave, Observed: dialog, Title: title,
		})
	}
}

// enterFilename replaces the save dialog's filename. The dialog class is
// re-verified immediately before typing, not just before the select-all:
// the window can change between the two keystrokes, and typing into the
// wrong control is exactly the failure this machine exists to prevent.
func (m *Machine) enterFilename(ctx context.Context, att *attempt) state {
	if att.req.OutputDir != "" {
		if ok, detail := m.driver.GoToFolder(ctx, att.req.OutputDir); !ok {
			return m.fail(att, fmt.Errorf("failed to navigate to %s: %s", att.req.OutputDir, detail))
		}
		att.complete(StepNavigatedToFolder)
	}

	dialog, title := m.verify.Classify(ctx)
	if dialog != DialogSave {
		return m.fail(att, &DialogMismatchError{
			Step: StepVerifiedSaveDialog, Expected: DialogSave, Observed: dialog, Title: title,
		})
	}
	if err := m.driver.SelectAllInField(ctx); err != nil {
		return m.fail(att, err)
	}

	dialog, title = m.verify.Classify(ctx)
	if dialog != DialogSave {
		return m.fail(att, &DialogMismatchError{
			Step: StepVerifiedSaveDialog, Expected: DialogSave, Observed: dialog, Title: title,
		})
	}
	if ok, detail := m.driver.TypeText(ctx, att.req.Filename); !ok {
		return m.fail(att, fmt.Errorf("failed to type filename: %s", detail))
	}
	att.complete(StepTypedFilename)
	return stateStartingExport
}

func (m *Machine) handleSubconfirm(ctx context.Context, att *attempt) state {
	if ok, detail := m.driver.PressConfirm(ctx); !ok {
		return m.fail(att, fmt.Errorf("failed to answer sub-confirmation: %s", detail))
	}
	att.complete(StepHandledSubconfirm)
	att.complete(StepStartedExport)
	return stateWaitingCompletion
}

func (m *Machine) startExport(ctx context.Context, att *attempt) state {
	if ok, detail := m.driver.PressConfirm(ctx); !ok {
		return m.fail(att, fmt.Errorf("failed to start export: %s", detail))
	}
	att.complete(StepStartedExport)
	return stateWaitingCompletion
}

// waitCompletion polls the dialog class until the export-related windows
// are gone. A save dialog observed at any poll means the render never
// started, which fails immediately instead of waiting out the timeout.
func (m *Machine) waitCompletion(ctx context.Context, att *attempt) state {
	start := m.now()
	var lastProgress time.Duration

	for {
		m.sleep(m.opts.PollInterval)
		elapsed := m.now().Sub(start)

		dialog, title := m.verify.Classify(ctx)
		if dialog == DialogSave {
			return m.fail(att, fmt.Errorf(
				"save dialog still open after %s, the render did not start", elapsed.Round(time.Second)))
		}
		if dialog != DialogExport {
			return stateSucceeded
		}
		if elapsed >= m.opts.CompletionTimeout {
			return m.fail(att, &WaitTimeoutError{Elapsed: elapsed, Title: title})
		}
		if elapsed-lastProgress >= m.opts.ProgressInterval {
			m.opts.OnProgress(elapsed)
			lastProgress = elapsed
		}
	}
}
