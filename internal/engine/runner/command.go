// Package runner executes the coarse dependency query and summarizes its
// output.
package runner

import (
	"strings"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
)

// Command is an assembled build-tool query invocation. It is a value: the
// With* methods return modified copies.
type Command struct {
	binary       string
	startupFlags []string
	flags        []string
	expression   string
	queryFile    string
}

// NewCommand assembles "<binary> <startup flags> query <flags> <expression>"
// and validates it.
func NewCommand(binary string, startupFlags, extraFlags []string, spec query.Spec) (Command, error) {
	flags := spec.Flags()
	flags = append(flags, extraFlags...)
	c := Command{
		binary:       strings.TrimSpace(binary),
		startupFlags: append([]string(nil), startupFlags...),
		flags:        flags,
		expression:   spec.Expression(),
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

func (c Command) Validate() error {
	if c.binary == "" {
		return errors.New(errors.CodeValidationError, "query binary is required")
	}
	if c.expression == "" && c.queryFile == "" {
		return errors.New(errors.CodeValidationError, "query expression is empty")
	}
	for _, f := range append(append([]string(nil), c.startupFlags...), c.flags...) {
		if !strings.HasPrefix(f, "-") {
			return errors.AddContext(errors.New(errors.CodeValidationError, "flags must start with '-'"), "flag", f)
		}
	}
	return nil
}

// WithQueryFile returns a copy that passes the expression through
// --query_file instead of the command line.
func (c Command) WithQueryFile(path string) Command {
	c.queryFile = path
	c.startupFlags = append([]string(nil), c.startupFlags...)
	c.flags = append([]string(nil), c.flags...)
	return c
}

func (c Command) Binary() string     { return c.binary }
func (c Command) Expression() string { return c.expression }
func (c Command) QueryFile() string  { return c.queryFile }

// Args returns the arguments following the binary.
func (c Command) Args() []string {
	args := make([]string, 0, len(c.startupFlags)+len(c.flags)+3)
	args = append(args, c.startupFlags...)
	args = append(args, "query")
	args = append(args, c.flags...)
	if c.queryFile != "" {
		return append(args, "--query_file", c.queryFile)
	}
	return append(args, c.expression)
}

func (c Command) String() string {
	return strings.Join(append([]string{c.binary}, c.Args()...), " ")
}
