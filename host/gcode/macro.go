package gcode

import (
	"github.com/google/shlex"
	"github.com/pkg/errors"
)

// MacroSet holds named multi-statement command sequences (e.g. a PAUSE or
// START_PRINT macro), each stored as the token list shlex produces from
// its body, so a macro can embed a quoted M117 message without it being
// split into extra tokens.
type MacroSet struct {
	macros map[string][]string
}

func NewMacroSet() *MacroSet {
	return &MacroSet{macros: make(map[string][]string)}
}

// Define tokenizes body with shlex (which understands shell-style
// quoting) and stores the resulting statement list under name.
func (m *MacroSet) Define(name, body string) error {
	tokens, err := shlex.Split(body)
	if err != nil {
		return errors.Wrapf(err, "gcode: macro %q", name)
	}
	m.macros[name] = tokens
	return nil
}

// Run executes a defined macro's statements in order through in.
func (m *MacroSet) Run(in *Interpreter, parser *Parser, name string) error {
	stmts, ok := m.macros[name]
	if !ok {
		return errors.Errorf("gcode: unknown macro %q", name)
	}
	for _, line := range stmts {
		cmd, err := parser.ParseLine(line)
		if err != nil {
			return errors.Wrapf(err, "gcode: macro %q: parse %q", name, line)
		}
		if err := in.Execute(cmd); err != nil {
			return errors.Wrapf(err, "gcode: macro %q: %q", name, line)
		}
	}
	return nil
}
