package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeDriver scripts the window titles the machine will observe. Each
// FrontWindowTitle call consumes the next title; the last one repeats. All
// keystroke primitives record what was sent and the select-all honors the
// same title guard the real AppleScript carries.
type fakeDriver struct {
	titles   []string
	titleIdx int
	last     string

	frontmost    string
	activateFail bool

	dismissed int
	confirms  int
	tabs      int
	typed     []string
	folders   []string

	// fieldValue overrides the read-back of FocusedFieldValue; when empty
	// the last typed text is echoed, like a well-behaved dialog field.
	fieldValue string
}

func newFakeDriver(titles ...string) *fakeDriver {
	return &fakeDriver{titles: titles, frontmost: "Live"}
}

func (d *fakeDriver) Activate(ctx context.Context) (bool, string) {
	if d.activateFail {
		return false, "application not running"
	}
	return true, ""
}

func (d *fakeDriver) FrontmostApp(ctx context.Context) (bool, string) {
	return true, d.frontmost
}

func (d *fakeDriver) FrontWindowTitle(ctx context.Context) (bool, string) {
	if len(d.titles) == 0 {
		return true, ""
	}
	d.last = d.titles[d.titleIdx]
	if d.titleIdx < len(d.titles)-1 {
		d.titleIdx++
	}
	return true, d.last
}

func (d *fakeDriver) OpenExportDialog(ctx context.Context) (bool, string) { return true, "" }

func (d *fakeDriver) Dismiss(ctx context.Context) (bool, string) {
	d.dismissed++
	return true, ""
}

func (d *fakeDriver) PressConfirm(ctx context.Context) (bool, string) {
	d.confirms++
	return true, ""
}

func (d *fakeDriver) PressTab(ctx context.Context, count int) (bool, string) {
	d.tabs += count
	return true, ""
}

func (d *fakeDriver) TypeText(ctx context.Context, text string) (bool, string) {
	d.typed = append(d.typed, text)
	return true, ""
}

func (d *fakeDriver) SelectAllInField(ctx context.Context) error {
	if !ClassifyTitle(d.last).SafeForDestructive() {
		return errors.New("not in a dialog window - refusing select-all")
	}
	return nil
}

func (d *fakeDriver) GoToFolder(ctx context.Context, path string) (bool, string) {
	d.folders = append(d.folders, path)
	return true, ""
}

func (d *fakeDriver) FocusedFieldValue(ctx context.Context) (bool, string) {
	if d.fieldValue != "" {
		return true, d.fieldValue
	}
	if len(d.typed) == 0 {
		return true, ""
	}
	return true, d.typed[len(d.typed)-1]
}

// fakeClock advances simulated time on every sleep so completion timeouts
// can elapse instantly.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time        { return c.t }
func (c *fakeClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

func newTestMachine(d *fakeDriver, opts Options) *Machine {
	m := NewMachine(d, opts)
	clock := &fakeClock{t: time.Unix(0, 0)}
	m.now = clock.Now
	m.sleep = clock.Sleep
	return m
}

func hasStep(steps []Step, want Step) bool {
	for _, s := range steps {
		if s == want {
			return true
		}
	}
	return false
}

func TestExportHappyPath(t *testing.T) {
	d := newFakeDriver("Export Audio/Video", "Save", "Save", "Save", "")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{Filename: "bass_Amin_128bpm"})

	if !out.Success {
		t.Fatalf("export failed: %s (step %q)", out.Message, out.FailedStep)
	}
	if out.Filename != "bass_Amin_128bpm.wav" {
		t.Errorf("filename = %q, want bass_Amin_128bpm.wav", out.Filename)
	}
	if len(d.typed) != 1 || d.typed[0] != "bass_Amin_128bpm" {
		t.Errorf("typed = %v, want exactly the filename", d.typed)
	}
	if d.dismissed != 0 {
		t.Errorf("dismissed %d dialogs on a successful export", d.dismissed)
	}
	for _, want := range []Step{
		StepActivated, StepVerifiedFrontmost, StepOpenedExportDialog,
		StepVerifiedExportDialog, StepClickedExport, StepVerifiedSaveDialog,
		StepTypedFilename, StepStartedExport,
	} {
		if !hasStep(out.Steps, want) {
			t.Errorf("step %q missing from %v", want, out.Steps)
		}
	}
	if hasStep(out.Steps, StepSetRange) || hasStep(out.Steps, StepNavigatedToFolder) {
		t.Errorf("unexpected optional steps in %v", out.Steps)
	}
}

func TestExportNavigatesToOutputDir(t *testing.T) {
	d := newFakeDriver("Export Audio/Video", "Save", "Save", "Save", "")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{
		Filename:  "drums",
		OutputDir: "/tmp/stems",
		Extension: "aif",
	})

	if !out.Success {
		t.Fatalf("export failed: %s", out.Message)
	}
	if out.Filename != "drums.aif" {
		t.Errorf("filename = %q, want drums.aif", out.Filename)
	}
	if len(d.folders) != 1 || d.folders[0] != "/tmp/stems" {
		t.Errorf("navigated to %v, want [/tmp/stems]", d.folders)
	}
	if !hasStep(out.Steps, StepNavigatedToFolder) {
		t.Errorf("navigated_to_folder missing from %v", out.Steps)
	}
}

func TestExportSubconfirmationPath(t *testing.T) {
	// The Export title persisting after the confirm keystroke means Live
	// asked a sub-question instead of opening a save dialog.
	d := newFakeDriver("Export Audio/Video", "Export Audio/Video", "")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{Filename: "lead"})

	if !out.Success {
		t.Fatalf("export failed: %s (step %q)", out.Message, out.FailedStep)
	}
	if !hasStep(out.Steps, StepHandledSubconfirm) {
		t.Errorf("handled_subconfirm missing from %v", out.Steps)
	}
	if hasStep(out.Steps, StepTypedFilename) {
		t.Error("sub-confirmation path must not type a filename")
	}
	if len(d.typed) != 0 {
		t.Errorf("typed %v on the sub-confirmation path", d.typed)
	}
}

func TestExportFailsWhenDialogNeverOpens(t *testing.T) {
	// Main window, then an unrelated window: the export dialog never shows.
	d := newFakeDriver("")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded although the dialog never opened")
	}
	if out.FailedStep != StepOpenedExportDialog {
		t.Errorf("FailedStep = %q, want %q (last completed step)", out.FailedStep, StepOpenedExportDialog)
	}
	if d.dismissed != 3 {
		t.Errorf("abort dismissed %d times, want exactly 3", d.dismissed)
	}
	if !strings.Contains(out.Message, "opened_export_dialog") {
		t.Errorf("message %q does not name the failed step", out.Message)
	}
}

func TestExportFailsOnUnknownWindow(t *testing.T) {
	d := newFakeDriver("Preferences")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded with an unknown window in front")
	}
	if d.typed != nil {
		t.Errorf("typed %v into an unknown window", d.typed)
	}
	if d.dismissed != 3 {
		t.Errorf("abort dismissed %d times, want exactly 3", d.dismissed)
	}
}

func TestExportActivationRetriesThenFails(t *testing.T) {
	d := newFakeDriver("Export Audio/Video")
	d.activateFail = true
	m := newTestMachine(d, Options{ActivationRetries: 3})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded without activation")
	}
	if out.FailedStep != "" {
		t.Errorf("FailedStep = %q, want empty before the first step", out.FailedStep)
	}
	if !strings.Contains(out.Message, "3 attempts") {
		t.Errorf("message %q does not mention the attempt count", out.Message)
	}
}

func TestExportWrongFrontmostApp(t *testing.T) {
	d := newFakeDriver("Export Audio/Video")
	d.frontmost = "Finder"
	m := newTestMachine(d, Options{ActivationRetries: 2})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded while another application had focus")
	}
	if !strings.Contains(out.Message, "Finder") {
		t.Errorf("message %q does not name the stealing application", out.Message)
	}
}

func TestExportRangeEntry(t *testing.T) {
	d := newFakeDriver(
		"Export Audio/Video", // open verification
		"Export Audio/Video", // start field guard
		"Export Audio/Video", // length field guard
		"Save", "Save", "Save",
		"",
	)
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{
		Filename: "bass",
		Range:    &RenderRange{Start: 9, Length: 8},
	})

	if !out.Success {
		t.Fatalf("export failed: %s (step %q)", out.Message, out.FailedStep)
	}
	if !hasStep(out.Steps, StepSetRange) {
		t.Errorf("set_range missing from %v", out.Steps)
	}
	// Range values, then the filename.
	want := []string{"9", "8", "bass"}
	if len(d.typed) != len(want) {
		t.Fatalf("typed = %v, want %v", d.typed, want)
	}
	for i := range want {
		if d.typed[i] != want[i] {
			t.Errorf("typed[%d] = %q, want %q", i, d.typed[i], want[i])
		}
	}
	// One focus tab plus one commit tab per field.
	if d.tabs != 3 {
		t.Errorf("pressed tab %d times, want 3", d.tabs)
	}
}

func TestExportRangeToleratesBarRounding(t *testing.T) {
	d := newFakeDriver(
		"Export Audio/Video",
		"Export Audio/Video",
		"Export Audio/Video",
		"Save", "Save", "Save",
		"",
	)
	// Dialog rounds 8.7 to 9; within the accepted tolerance.
	d.fieldValue = "9"
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{
		Filename: "bass",
		Range:    &RenderRange{Start: 8.7, Length: 8.7},
	})
	if !out.Success {
		t.Fatalf("rounding within tolerance failed the export: %s", out.Message)
	}
}

func TestExportRangeMismatchAborts(t *testing.T) {
	d := newFakeDriver("Export Audio/Video", "Export Audio/Video")
	d.fieldValue = "127" // dialog rejected the typed value entirely
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{
		Filename: "bass",
		Range:    &RenderRange{Start: 9, Length: 8},
	})

	if out.Success {
		t.Fatal("export succeeded despite a range read-back mismatch")
	}
	if !strings.Contains(out.Message, "start") ||
		!strings.Contains(out.Message, "9") || !strings.Contains(out.Message, "127") {
		t.Errorf("message %q does not name field, expected and observed values", out.Message)
	}
	if d.dismissed != 3 {
		t.Errorf("abort dismissed %d times, want exactly 3", d.dismissed)
	}
}

func TestExportFailsWhenRenderNeverStarts(t *testing.T) {
	// The save dialog is still in front at the first completion poll.
	d := newFakeDriver("Export Audio/Video", "Save", "Save", "Save", "Save")
	m := newTestMachine(d, Options{})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded although the render never started")
	}
	if out.FailedStep != StepStartedExport {
		t.Errorf("FailedStep = %q, want %q", out.FailedStep, StepStartedExport)
	}
	if !strings.Contains(out.Message, "did not start") {
		t.Errorf("message %q does not say the render never started", out.Message)
	}
}

func TestExportCompletionTimeout(t *testing.T) {
	titles := []string{"Export Audio/Video", "Save", "Save", "Save"}
	// Export progress window stays up forever.
	for i := 0; i < 200; i++ {
		titles = append(titles, "Export Audio/Video")
	}
	d := newFakeDriver(titles...)

	var progress int
	m := newTestMachine(d, Options{
		PollInterval:      time.Second,
		CompletionTimeout: 120 * time.Second,
		ProgressInterval:  10 * time.Second,
		OnProgress:        func(time.Duration) { progress++ },
	})

	out := m.Export(context.Background(), Request{Filename: "bass"})

	if out.Success {
		t.Fatal("export succeeded although the render never finished")
	}
	if !strings.Contains(out.Message, "timed out") {
		t.Errorf("message %q does not mention the timeout", out.Message)
	}
	if progress == 0 {
		t.Error("no progress notifications during a long render")
	}
}

func TestExportLongRenderCompletes(t *testing.T) {
	titles := []string{"Export Audio/Video", "Save", "Save", "Save"}
	for i := 0; i < 30; i++ {
		titles = append(titles, "Export Audio/Video")
	}
	titles = append(titles, "")
	d := newFakeDriver(titles...)

	var progress int
	m := newTestMachine(d, Options{
		PollInterval:     time.Second,
		ProgressInterval: 10 * time.Second,
		OnProgress:       func(time.Duration) { progress++ },
	})

	out := m.Export(context.Background(), Request{Filename: "pad"})
	if !out.Success {
		t.Fatalf("long render failed: %s", out.Message)
	}
	if progress < 2 {
		t.Errorf("got %d progress notifications over ~30s, want at least 2", progress)
	}
}

func TestExportOutcomeIsAlwaysProduced(t *testing.T) {
	// A driver that panics mid-flight must still yield a failure Outcome.
	d := newFakeDriver("Export Audio/Video", "Save", "Save", "Save", "")
	m := newTestMachine(d, Options{})
	m.verify = NewVerifier(titleFunc(func() (bool, string) {
		panic("title source broke")
	}))

	out := m.Export(context.Background(), Request{Filename: "bass"})
	if out.Success {
		t.Fatal("panicking attempt reported success")
	}
	if !strings.Contains(out.Message, "internal error") {
		t.Errorf("message %q does not flag the internal error", out.Message)
	}
	if d.dismissed == 0 {
		t.Error("panic path skipped the abort dismissals")
	}
}

func TestExportSecondAttemptAfterFailure(t *testing.T) {
	d := newFakeDriver("")
	m := newTestMachine(d, Options{})

	first := m.Export(context.Background(), Request{Filename: "bass"})
	if first.Success {
		t.Fatal("first attempt unexpectedly succeeded")
	}

	// Same machine, healthy dialog flow: the failed attempt must leave no
	// state behind.
	d2 := newFakeDriver("Export Audio/Video", "Save", "Save", "Save", "")
	m.driver = d2
	m.verify = NewVerifier(d2)

	second := m.Export(context.Background(), Request{Filename: "bass"})
	if !second.Success {
		t.Fatalf("second attempt failed: %s (step %q)", second.Message, second.FailedStep)
	}
	if hasStep(second.Steps, "") || len(second.Steps) == 0 {
		t.Errorf("second attempt steps look stale: %v", second.Steps)
	}
}
