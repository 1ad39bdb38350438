// Package command turns free-text phrases such as "set kitchen flashing
// help" into device mode changes.
package command

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/device"
)

// Command is the result of parsing a phrase. Nil fields were not named.
type Command struct {
	Device     string
	Visibility *device.Visibility
	FlashMode  *device.FlashMode
}

// ModeAffecting reports whether the command changes visibility or flash mode.
func (c Command) ModeAffecting() bool {
	return c.Visibility != nil || c.FlashMode != nil
}

// Tokens lowercases a phrase, strips double quotes and splits it on
// whitespace. Empty tokens are dropped.
func Tokens(phrase string) []string {
	phrase = strings.ReplaceAll(strings.ToLower(phrase), `"`, " ")
	return strings.Fields(phrase)
}

// Parse scans the tokens of phrase in order. Each token may set the flash
// mode, the visibility and the target device; a later match overrides an
// earlier one in the same category. Unrecognized tokens are skipped. When
// no token names a device, the registry default is the target.
func Parse(reg *device.Registry, phrase string) Command {
	cmd := Command{Device: reg.Default()}
	for _, tok := range Tokens(phrase) {
		if m, ok := device.FlashModeToken(tok); ok {
			cmd.FlashMode = &m
		}
		if v, ok := device.VisibilityToken(tok); ok {
			cmd.Visibility = &v
		}
		if name, ok := reg.Lookup(tok); ok {
			cmd.Device = name
		}
	}
	return cmd
}

// Apply writes the command to its target device and restarts the waveform
// if anything changed. It returns the resulting device state.
func Apply(reg *device.Registry, cmd Command) device.State {
	reg.Do(cmd.Device, func(d *device.Device) {
		if cmd.FlashMode != nil {
			d.FlashMode = *cmd.FlashMode
		}
		if cmd.Visibility != nil {
			d.Visibility = *cmd.Visibility
		}
		if cmd.ModeAffecting() {
			d.ResetIndex()
		}
	})
	st, _ := reg.Get(cmd.Device)
	return st
}

// Applier runs phrases against a registry and logs what changed.
type Applier struct {
	reg *device.Registry
	log zerolog.Logger
}

// NewApplier creates an Applier.
func NewApplier(reg *device.Registry, log zerolog.Logger) *Applier {
	return &Applier{reg: reg, log: log}
}

// ApplyCommand parses phrase and applies it. It never fails.
func (a *Applier) ApplyCommand(phrase string) device.State {
	return a.ApplyParsed(Parse(a.reg, phrase), phrase)
}

// ApplyParsed applies an already parsed (and possibly adjusted) command.
func (a *Applier) ApplyParsed(cmd Command, phrase string) device.State {
	st := Apply(a.reg, cmd)
	a.log.Info().
		Str("phrase", phrase).
		Str("device", st.Name).
		Stringer("visibility", st.Visibility).
		Stringer("flash_mode", st.FlashMode).
		Bool("changed", cmd.ModeAffecting()).
		Msg("command applied")
	return st
}

// Registry exposes the registry the Applier works on.
func (a *Applier) Registry() *device.Registry {
	return a.reg
}
