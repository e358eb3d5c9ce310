package demo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// ErrBatteryUnavailable is returned when the platform has no battery
// or no supported way to query it
var ErrBatteryUnavailable = errors.New("battery status is not available")

const windowsQuery = "Get-CimInstance -ClassName Win32_Battery | Select-Object -Property EstimatedChargeRemaining"

// Battery queries the platform battery status
type Battery struct {
	// GOOS selects the query mechanism
	GOOS string
	// PowerSupplyDir is the sysfs power supply class on linux
	PowerSupplyDir string

	lookPath func(file string) (string, error)
	output   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewBattery returns the battery reader for the current platform
func NewBattery() *Battery {
	return &Battery{
		GOOS:           runtime.GOOS,
		PowerSupplyDir: "/sys/class/power_supply",
		lookPath:       exec.LookPath,
		output:         commandOutput,
	}
}

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- fixed query commands
	return exec.CommandContext(ctx, name, args...).Output()
}

// Status returns the raw text of the platform battery query
func (b *Battery) Status(ctx context.Context) (string, error) {
	var (
		res string
		err error
	)
	switch b.GOOS {
	case "windows":
		res, err = b.windows(ctx)
	case "darwin":
		res, err = b.run(ctx, "pmset", "-g", "batt")
	case "linux":
		res, err = b.linux()
	default:
		err = errors.Wrapf(ErrBatteryUnavailable, "unsupported platform %s", b.GOOS)
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "battery_status",
			"goos", b.GOOS,
			"err", err.Error(),
		)
		return "", err
	}
	return res, nil
}

func (b *Battery) windows(ctx context.Context) (string, error) {
	for _, shell := range []string{"pwsh", "powershell"} {
		if path, err := b.lookPath(shell); err == nil {
			return b.run(ctx, path, "-NoProfile", "-Command", windowsQuery)
		}
	}
	return "", errors.Wrap(ErrBatteryUnavailable, "PowerShell is not found in PATH")
}

func (b *Battery) run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := b.output(ctx, name, args...)
	if err != nil {
		return "", errors.Wrapf(err, "failed to run %s", name)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *Battery) linux() (string, error) {
	dirs, err := filepath.Glob(filepath.Join(b.PowerSupplyDir, "BAT*"))
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(dirs) == 0 {
		return "", errors.Wrap(ErrBatteryUnavailable, "no battery found")
	}
	sort.Strings(dirs)

	var lines []string
	for _, dir := range dirs {
		capacity, err := readValue(filepath.Join(dir, "capacity"))
		if err != nil {
			return "", err
		}
		line := filepath.Base(dir) + ": " + capacity + "%"
		if status, err := readValue(filepath.Join(dir, "status")); err == nil && status != "" {
			line += " " + status
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func readValue(file string) (string, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", filepath.Base(file))
	}
	return strings.TrimSpace(string(b)), nil
}
