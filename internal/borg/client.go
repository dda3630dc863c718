package borg

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// Command is a single borg invocation: argv after the binary plus any extra
// environment (BORG_PASSPHRASE and friends).
type Command struct {
	Args []string
	Env  []string
}

// Engine abstracts borg execution so the runner and mount manager can be
// tested without the binary. *Client is the real implementation.
type Engine interface {
	// Run executes the command to completion and returns the combined
	// stdout/stderr. Output chunks are forwarded to onOutput as they arrive
	// when it is non-nil. A non-zero exit returns the output alongside the
	// error.
	Run(ctx context.Context, cmd Command, onOutput func(chunk string)) (string, error)

	// Start launches a long-lived command (mount) without waiting for it.
	Start(cmd Command) (*Process, error)
}

// Client shells out to the borg binary.
type Client struct {
	binary  string
	timeout time.Duration
}

func NewClient(binary string, timeout time.Duration) *Client {
	return &Client{binary: binary, timeout: timeout}
}

func (c *Client) Run(ctx context.Context, cmd Command, onOutput func(string)) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	proc := exec.CommandContext(ctx, c.binary, cmd.Args...)
	proc.Env = append(os.Environ(), cmd.Env...)

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	proc.Stderr = proc.Stdout

	if err := proc.Start(); err != nil {
		return "", fmt.Errorf("start %s %v: %w", c.binary, cmd.Args, err)
	}

	var output []byte
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		output = append(output, line...)
		if onOutput != nil {
			onOutput(line)
		}
	}

	if err := proc.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return string(output), fmt.Errorf("%s %v timed out after %s", c.binary, cmd.Args, c.timeout)
		}
		return string(output), fmt.Errorf("%s %v: %w", c.binary, cmd.Args, err)
	}
	return string(output), nil
}

func (c *Client) Start(cmd Command) (*Process, error) {
	proc := exec.Command(c.binary, cmd.Args...)
	proc.Env = append(os.Environ(), cmd.Env...)

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	proc.Stderr = proc.Stdout

	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("start %s %v: %w", c.binary, cmd.Args, err)
	}

	p := &Process{
		PID:   proc.Process.Pid,
		cmd:   proc,
		lines: make(chan string, 64),
		done:  make(chan error, 1),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			select {
			case p.lines <- scanner.Text():
			default:
				// Drop lines nobody is reading; mount output is only
				// interesting during startup.
			}
		}
		close(p.lines)
		p.done <- proc.Wait()
	}()

	return p, nil
}

// Process is a running long-lived borg command.
type Process struct {
	PID   int
	cmd   *exec.Cmd
	lines chan string
	done  chan error
}

// ReadLine returns the next output line, waiting up to timeout. The second
// return is false when no line arrived in time or output is exhausted.
func (p *Process) ReadLine(timeout time.Duration) (string, bool) {
	select {
	case line, ok := <-p.lines:
		return line, ok
	case <-time.After(timeout):
		return "", false
	}
}

// Exited reports whether the process has finished, and its error if so.
func (p *Process) Exited() (bool, error) {
	select {
	case err := <-p.done:
		p.done <- err
		return true, err
	default:
		return false, nil
	}
}

// Terminate sends SIGTERM to the process. Already-dead processes are a no-op.
func (p *Process) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if err == os.ErrProcessDone {
			return nil
		}
		return err
	}
	return nil
}

// TerminatePID signals a previously recorded mount PID. Used when the manager
// restarted and lost its Process handle.
func TerminatePID(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	// Signal 0 probes for existence first.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil
	}
	return proc.Signal(syscall.SIGTERM)
}

// ---------- command builders ----------

// CreateCommand builds `borg create repo::archive source --stats`.
func CreateCommand(repoPath, archive, sourcePath string) Command {
	return Command{Args: []string{"create", repoPath + "::" + archive, sourcePath, "--stats"}}
}

// ListCommand builds `borg list repo --json`.
func ListCommand(repoPath string) Command {
	return Command{Args: []string{"list", repoPath, "--json"}}
}

// PruneOptions are the retention knobs for a prune run. Zero values fall back
// to the defaults borg is invoked with.
type PruneOptions struct {
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
	// Prefix limits pruning to archives whose name starts with it.
	Prefix string
}

// PruneCommand builds `borg prune repo --keep-* ... --stats`.
func PruneCommand(repoPath string, opts PruneOptions) Command {
	if opts.KeepDaily <= 0 {
		opts.KeepDaily = 7
	}
	if opts.KeepWeekly <= 0 {
		opts.KeepWeekly = 4
	}
	if opts.KeepMonthly <= 0 {
		opts.KeepMonthly = 6
	}
	args := []string{
		"prune", repoPath,
		"--keep-daily", strconv.Itoa(opts.KeepDaily),
		"--keep-weekly", strconv.Itoa(opts.KeepWeekly),
		"--keep-monthly", strconv.Itoa(opts.KeepMonthly),
		"--stats",
	}
	if opts.Prefix != "" {
		args = append(args, "--glob-archives", opts.Prefix+"*")
	}
	return Command{Args: args}
}

// MountCommand builds `borg mount repo::archive path`.
func MountCommand(repoPath, archive, mountPath string) Command {
	return Command{Args: []string{"mount", repoPath + "::" + archive, mountPath}}
}

// PassphraseEnv returns the env entry that unlocks an encrypted repository.
func PassphraseEnv(passphrase string) string {
	return "BORG_PASSPHRASE=" + passphrase
}
