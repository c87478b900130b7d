package toolchain

import "strconv"

// Args accumulates a program's argument vector.
type Args struct {
	list []string
}

// NewArgs starts an argument vector.
func NewArgs() *Args {
	return &Args{}
}

// Flag appends a flag followed by its value.
func (a *Args) Flag(name, value string) *Args {
	a.list = append(a.list, name, value)
	return a
}

// Int appends a flag with an integer value.
func (a *Args) Int(name string, v int) *Args {
	return a.Flag(name, strconv.Itoa(v))
}

// Float appends a flag with a float value in its shortest form.
func (a *Args) Float(name string, v float64) *Args {
	return a.Flag(name, strconv.FormatFloat(v, 'g', -1, 64))
}

// Switch appends a bare flag.
func (a *Args) Switch(name string) *Args {
	a.list = append(a.list, name)
	return a
}

// SwitchIf appends a bare flag when cond holds.
func (a *Args) SwitchIf(cond bool, name string) *Args {
	if cond {
		a.Switch(name)
	}
	return a
}

// FlagIf appends a flag and value when cond holds.
func (a *Args) FlagIf(cond bool, name, value string) *Args {
	if cond {
		a.Flag(name, value)
	}
	return a
}

// List returns the accumulated arguments.
func (a *Args) List() []string {
	out := make([]string, len(a.list))
	copy(out, a.list)
	return out
}
