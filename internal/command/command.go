// Package command materializes a matched Pattern and its triggering
// event into a fully rendered Info ready for rate-limiting and
// execution.
//
// The shape — a small descriptor type plus a pure render step separate
// from the actual process spawn — keeps "what command to run" (Info's
// fields) distinct from "go run it" (exec.CommandContext at the call
// site, in internal/executor).
package command

import (
	"fmt"
	"os"

	"github.com/yukimemi/spyrun/internal/tmpl"
)

// Info is the materialized invocation descriptor.
type Info struct {
	Name      string
	EventPath string
	EventKind string
	Cmd       string
	Arg       []string
	Input     string
	Output    string
}

// String is Info's canonical display form, used as the default
// rate-limit key when a spy's limitkey/mutexkey template is empty.
func (i Info) String() string {
	return fmt.Sprintf("%s|%s|%s|%v|%s|%s", i.Name, i.EventKind, i.Cmd, i.Arg, i.Input, i.Output)
}

// Result is the outcome of one invocation attempt.
type Result struct {
	Status     int
	StdoutPath string
	StderrPath string
	Skipped    bool
}

// Materialize renders spy_name/cmd/arg/input/output against ctx in
// that order, folding each rendered value back into the context before
// the next template renders, augments ctx with the event-path
// decomposition first, and ensures the rendered output directory
// exists.
func Materialize(spyName, eventPath, eventKind, cmdTmpl string, argTmpls []string, inputTmpl, outputTmpl string, ctx tmpl.Context) (Info, error) {
	working := tmpl.WithEventPath(ctx, eventPath)
	working["event_kind"] = eventKind

	rendered, err := tmpl.RenderAll(working, [2]string{"spy_name", spyName})
	if err != nil {
		return Info{}, fmt.Errorf("render spy_name: %w", err)
	}

	renderedCmd, err := tmpl.Render(cmdTmpl, rendered)
	if err != nil {
		return Info{}, fmt.Errorf("render cmd: %w", err)
	}
	rendered["cmd"] = renderedCmd

	args := make([]string, 0, len(argTmpls))
	for idx, a := range argTmpls {
		renderedArg, err := tmpl.Render(a, rendered)
		if err != nil {
			return Info{}, fmt.Errorf("render arg[%d]: %w", idx, err)
		}
		args = append(args, renderedArg)
		rendered[fmt.Sprintf("arg_%d", idx)] = renderedArg
	}

	renderedInput, err := tmpl.Render(inputTmpl, rendered)
	if err != nil {
		return Info{}, fmt.Errorf("render input: %w", err)
	}
	rendered["input"] = renderedInput

	renderedOutput, err := tmpl.Render(outputTmpl, rendered)
	if err != nil {
		return Info{}, fmt.Errorf("render output: %w", err)
	}
	rendered["output"] = renderedOutput

	if renderedOutput != "" {
		if err := os.MkdirAll(renderedOutput, 0o755); err != nil {
			return Info{}, fmt.Errorf("create output dir %s: %w", renderedOutput, err)
		}
	}

	return Info{
		Name:      rendered["spy_name"].(string),
		EventPath: working["event_path"].(string),
		EventKind: eventKind,
		Cmd:       renderedCmd,
		Arg:       args,
		Input:     renderedInput,
		Output:    renderedOutput,
	}, nil
}
