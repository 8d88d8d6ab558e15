package resolve

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/deepractice/resourcex/internal/rxlog"
)

// SubprocessSandbox is the default Sandbox: it runs script as a command
// line, writing the JSON payload to stdin and reading the result from
// stdout. Cancellation of ctx kills the subprocess, per §5
// ("sandbox subprocesses ... MUST be killed").
type SubprocessSandbox struct {
	// Command splits script into an executable and its arguments; by
	// default the script string is interpreted as "executable arg...".
	Command func(script string) (name string, args []string)
}

func (s *SubprocessSandbox) Execute(ctx context.Context, script string, payload []byte) ([]byte, []byte, int, error) {
	name, args := s.command(script)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	if err != nil {
		rxlog.GetLogger(ctx).WithField("script", script).WithError(err).Warn("sandbox launch failed")
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, nil
}

func (s *SubprocessSandbox) command(script string) (string, []string) {
	if s.Command != nil {
		return s.Command(script)
	}
	return "/bin/sh", []string{"-c", script}
}
