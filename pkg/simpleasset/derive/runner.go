package derive

import (
	"context"
	"os/exec"
)

// Runner executes external commands. It exists so tests can substitute a stub
// for the real ffprobe binary.
type Runner interface {
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
}

// CommandRunner runs commands via os/exec
type CommandRunner struct{}

// NewCommandRunner creates a new command runner
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

// RunWithInput runs the command feeding input on stdin and returns stdout
func (r *CommandRunner) RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	go func() {
		defer stdin.Close()
		stdin.Write(input)
	}()

	return cmd.Output()
}
