package demo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattery_Linux(t *testing.T) {
	dir := t.TempDir()
	bat := filepath.Join(dir, "BAT0")
	require.NoError(t, os.MkdirAll(bat, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bat, "capacity"), []byte("87\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(bat, "status"), []byte("Discharging\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "AC"), 0o755))

	b := &Battery{GOOS: "linux", PowerSupplyDir: dir}
	res, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BAT0: 87% Discharging", res)

	bat1 := filepath.Join(dir, "BAT1")
	require.NoError(t, os.MkdirAll(bat1, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bat1, "capacity"), []byte("40"), 0o644))
	res, err = b.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BAT0: 87% Discharging\nBAT1: 40%", res)

	b.PowerSupplyDir = t.TempDir()
	_, err = b.Status(context.Background())
	assert.ErrorIs(t, err, ErrBatteryUnavailable)
}

func TestBattery_Windows(t *testing.T) {
	var called []string
	b := &Battery{
		GOOS: "windows",
		lookPath: func(file string) (string, error) {
			if file == "powershell" {
				return `C:\Windows\powershell.exe`, nil
			}
			return "", errors.New("not found")
		},
		output: func(_ context.Context, name string, args ...string) ([]byte, error) {
			called = append([]string{name}, args...)
			return []byte("\r\nEstimatedChargeRemaining\r\n------------------------\r\n                      95\r\n"), nil
		},
	}
	res, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res, "EstimatedChargeRemaining")
	assert.Contains(t, res, "95")
	assert.Equal(t, []string{`C:\Windows\powershell.exe`, "-NoProfile", "-Command", windowsQuery}, called)

	b.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, err = b.Status(context.Background())
	assert.ErrorIs(t, err, ErrBatteryUnavailable)
}

func TestBattery_Darwin(t *testing.T) {
	b := &Battery{
		GOOS: "darwin",
		output: func(_ context.Context, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "pmset", name)
			assert.Equal(t, []string{"-g", "batt"}, args)
			return []byte("Now drawing from 'Battery Power'\n -InternalBattery-0\t76%; discharging\n"), nil
		},
	}
	res, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res, "76%")

	b.output = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err = b.Status(context.Background())
	assert.EqualError(t, err, "failed to run pmset: exit status 1")
}

func TestBattery_Unsupported(t *testing.T) {
	b := &Battery{GOOS: "plan9"}
	_, err := b.Status(context.Background())
	assert.ErrorIs(t, err, ErrBatteryUnavailable)
	assert.Contains(t, err.Error(), "unsupported platform plan9")
}
