package system

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/brewctl/internal/errors"
)

type call struct {
	name string
	args []string
}

func recordingRunner(calls *[]call, err error) Runner {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name, args})
		return err
	}
}

func TestDisabledDoesNothing(t *testing.T) {
	var calls []call
	p := NewWithRunner(Config{RebootCommand: "sudo shutdown -r now"}, recordingRunner(&calls, nil))

	require.NoError(t, p.Reboot())
	assert.Empty(t, calls)
}

func TestRunsConfiguredCommands(t *testing.T) {
	var calls []call
	p := NewWithRunner(Config{
		Enabled:         true,
		RebootCommand:   "sudo shutdown -r now",
		PoweroffCommand: "systemctl poweroff",
	}, recordingRunner(&calls, nil))

	require.NoError(t, p.Reboot())
	require.NoError(t, p.PowerOff())

	assert.Equal(t, []call{
		{"sudo", []string{"shutdown", "-r", "now"}},
		{"systemctl", []string{"poweroff"}},
	}, calls)
}

func TestCommandFailure(t *testing.T) {
	var calls []call
	p := NewWithRunner(Config{Enabled: true, RebootCommand: "reboot"}, recordingRunner(&calls, stderrors.New("exit 1")))

	assert.True(t, errors.HasCode(p.Reboot(), errors.ErrOperationFailed))
}

func TestMissingCommand(t *testing.T) {
	var calls []call
	p := NewWithRunner(Config{Enabled: true}, recordingRunner(&calls, nil))

	assert.True(t, errors.HasCode(p.PowerOff(), errors.ErrMissingConfig))
	assert.Empty(t, calls)
}
