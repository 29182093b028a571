// Package process starts a local REPL bridge executable and exposes its stdio as a duplex stream.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Config describes the process to start.
type Config struct {
	Path string
	Args []string
	Env  []string // appended to the current environment
	Dir  string

	// Stderr receives the child's standard error. Defaults to discarding it,
	// since stdout carries protocol frames and must not be mixed with diagnostics.
	Stderr io.Writer
}

type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File

	done     chan struct{}
	waitErr  error
	closeErr error
	once     sync.Once
}

// Start launches the executable. The process is killed when ctx ends.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("process path is empty")
	}

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutWriter

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutReader.Close()
		stdoutWriter.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	// The child holds its own copy; closing ours lets the reader see EOF on exit.
	stdoutWriter.Close()

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutReader,
		done:   make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *Process) Stdin() io.Writer {
	return p.stdin
}

func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	<-p.done
	if p.waitErr != nil {
		return fmt.Errorf("process exited with error: %w", p.waitErr)
	}
	return nil
}

// Close closes stdin, kills the process if it is still running and releases stdout.
func (p *Process) Close() error {
	p.once.Do(func() {
		if err := p.stdin.Close(); err != nil {
			p.closeErr = fmt.Errorf("failed to close stdin: %w", err)
		}

		select {
		case <-p.done:
		default:
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && p.closeErr == nil {
				p.closeErr = fmt.Errorf("failed to kill process: %w", err)
			}
			<-p.done
		}

		if err := p.stdout.Close(); err != nil && p.closeErr == nil {
			p.closeErr = fmt.Errorf("failed to close stdout: %w", err)
		}
	})
	return p.closeErr
}
