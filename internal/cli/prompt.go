package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrPromptAborted is returned when the user interrupts a prompt.
var ErrPromptAborted = errors.New("prompt aborted")

// Prompter reads interactive input.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}

// ReadlinePrompter prompts on the terminal using readline.
type ReadlinePrompter struct {
	stdin  io.ReadCloser
	stdout io.Writer
}

// NewReadlinePrompter creates a prompter. Nil streams fall back to the
// process terminal.
func NewReadlinePrompter(stdin io.ReadCloser, stdout io.Writer) *ReadlinePrompter {
	return &ReadlinePrompter{stdin: stdin, stdout: stdout}
}

func (p *ReadlinePrompter) newInstance(prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           p.stdin,
		Stdout:          p.stdout,
	})
}

// ReadLine reads one line of input.
func (p *ReadlinePrompter) ReadLine(prompt string) (string, error) {
	rl, err := p.newInstance(prompt)
	if err != nil {
		return "", err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", promptError(err)
	}
	return strings.TrimSpace(line), nil
}

// ReadPassword reads input without echoing it.
func (p *ReadlinePrompter) ReadPassword(prompt string) (string, error) {
	rl, err := p.newInstance("")
	if err != nil {
		return "", err
	}
	defer rl.Close()

	secret, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", promptError(err)
	}
	return string(secret), nil
}

func promptError(err error) error {
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return ErrPromptAborted
	}
	return err
}
