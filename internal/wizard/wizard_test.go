package wizard

import (
	"errors"
	"testing"

	"sitesetup/internal/plugins"
	"sitesetup/internal/transparency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ready(b bool) *plugins.Report {
	return &plugins.Report{Statuses: map[string]plugins.Status{}, RequiredReady: b}
}

func TestPluginsGate(t *testing.T) {
	w := New()
	w.SetPluginReport(ready(false))

	for _, ev := range []Event{EventNext, EventSkipPlugins} {
		st, err := w.Apply(ev)
		assert.ErrorIs(t, err, ErrStepLocked, ev)
		assert.Equal(t, StepPlugins, st.CurrentStep)
	}
	assert.False(t, w.CanAdvance())

	w.SetPluginReport(ready(true))
	assert.True(t, w.CanAdvance())
	st, err := w.Apply(EventSkipPlugins)
	require.NoError(t, err)
	assert.Equal(t, StepThemeOptions, st.CurrentStep)
}

func TestThemeOptionsGate(t *testing.T) {
	w := New()
	w.SetPluginReport(ready(true))
	_, err := w.Apply(EventNext)
	require.NoError(t, err)

	_, err = w.Apply(EventNext)
	assert.ErrorIs(t, err, ErrStepLocked)

	w.MarkOptionsSaved()
	st, err := w.Apply(EventNext)
	require.NoError(t, err)
	assert.Equal(t, StepContentImport, st.CurrentStep)
}

func TestContentImportExits(t *testing.T) {
	for _, ev := range []Event{EventImportSucceeded, EventSkipImport} {
		w := atImport(t)
		st, err := w.Apply(ev)
		require.NoError(t, err)
		assert.Equal(t, StepComplete, st.CurrentStep)
	}

	w := atImport(t)
	_, err := w.Apply(EventNext)
	assert.ErrorIs(t, err, ErrInvalidTransition, "import is left only by success or skip")
}

func TestBackIsNeverGated(t *testing.T) {
	w := atImport(t)

	// Readiness dropping after the fact does not block going back.
	w.SetPluginReport(ready(false))

	st, err := w.Apply(EventBack)
	require.NoError(t, err)
	assert.Equal(t, StepThemeOptions, st.CurrentStep)
	st, err = w.Apply(EventBack)
	require.NoError(t, err)
	assert.Equal(t, StepPlugins, st.CurrentStep)

	_, err = w.Apply(EventBack)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRestartResetsOnlyTheStep(t *testing.T) {
	w := atImport(t)
	_, err := w.Apply(EventImportSucceeded)
	require.NoError(t, err)

	for _, ev := range []Event{EventNext, EventBack, EventSkipImport} {
		_, err := w.Apply(ev)
		assert.ErrorIs(t, err, ErrInvalidTransition, ev)
	}

	st, err := w.Apply(EventRestart)
	require.NoError(t, err)
	assert.Equal(t, State{CurrentStep: StepPlugins, RequiredPluginsReady: true, OptionsSaved: true}, st)
}

func TestRejectedEventLeavesStateUnchanged(t *testing.T) {
	w := New()
	before := w.State()
	_, err := w.Apply(EventImportSucceeded)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StepPlugins, te.From)
	assert.Equal(t, EventImportSucceeded, te.Event)
	assert.Equal(t, before, w.State())
	assert.Equal(t, transparency.ErrorCategoryValidation, transparency.ClassifyError(err).Category)
}

func TestParseEvent(t *testing.T) {
	for _, ev := range Events() {
		got, err := ParseEvent(string(ev))
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
	_, err := ParseEvent("jump")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "content_import", StepContentImport.String())
	assert.Equal(t, "step(9)", Step(9).String())
}

func atImport(t *testing.T) *Wizard {
	t.Helper()
	w := New()
	w.SetPluginReport(ready(true))
	w.MarkOptionsSaved()
	for i := 0; i < 2; i++ {
		_, err := w.Apply(EventNext)
		require.NoError(t, err)
	}
	require.Equal(t, StepContentImport, w.State().CurrentStep)
	return w
}
