package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	stderrTailSize = 4096
	// waitDelay bounds how long Wait drains output pipes held open by
	// children of a killed encoder.
	waitDelay = 2 * time.Second
)

type ProcessState int

const (
	ProcessIdle ProcessState = iota
	ProcessRunning
	ProcessExited
	ProcessError
)

// Process is one encoder invocation. It is stopped in two steps: a graceful
// request on stdin, then Kill.
type Process struct {
	binary string
	args   []string
	dir    string
	pipe   bool

	mu       sync.RWMutex
	state    ProcessState
	err      error
	exitCode int
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   *tailWriter
	done     chan struct{}
}

// NewProcess prepares binary with args. A pipe process exposes its standard
// output through Stdout.
func NewProcess(binary string, args []string, dir string, pipe bool) *Process {
	return &Process{
		binary:   binary,
		args:     args,
		dir:      dir,
		pipe:     pipe,
		state:    ProcessIdle,
		exitCode: -1,
		stderr:   &tailWriter{limit: stderrTailSize},
		done:     make(chan struct{}),
	}
}

func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != ProcessIdle {
		return fmt.Errorf("process already started")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.cmd = exec.CommandContext(ctx, p.binary, p.args...)
	p.cmd.Dir = p.dir
	p.cmd.Stderr = p.stderr
	p.cmd.WaitDelay = waitDelay

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return p.startFailed(err)
	}
	p.stdin = stdin

	// The read end outlives Wait so a client can drain buffered output.
	var writer *os.File
	if p.pipe {
		r, w, err := os.Pipe()
		if err != nil {
			return p.startFailed(err)
		}
		p.stdout, writer = r, w
		p.cmd.Stdout = w
	}

	if err := p.cmd.Start(); err != nil {
		if writer != nil {
			_ = writer.Close()
			_ = p.stdout.Close()
		}
		return p.startFailed(err)
	}
	if writer != nil {
		_ = writer.Close()
	}

	p.state = ProcessRunning
	go p.run()
	return nil
}

func (p *Process) startFailed(err error) error {
	p.state = ProcessError
	p.err = err
	p.cancel()
	close(p.done)
	return err
}

func (p *Process) run() {
	err := p.cmd.Wait()

	p.mu.Lock()
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.state = ProcessError
		p.err = err
	} else {
		p.state = ProcessExited
	}
	p.mu.Unlock()

	p.cancel()
	close(p.done)
}

// Stdout is the encoder's standard output for pipe processes, or nil.
func (p *Process) Stdout() io.ReadCloser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stdout
}

// RequestGracefulStop asks the encoder to finish its output and quit.
func (p *Process) RequestGracefulStop() error {
	p.mu.RLock()
	stdin := p.stdin
	running := p.state == ProcessRunning
	p.mu.RUnlock()

	if !running || stdin == nil {
		return nil
	}
	if _, err := io.WriteString(stdin, "q\n"); err != nil {
		return err
	}
	return stdin.Close()
}

func (p *Process) Kill() {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) State() ProcessState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Err reports a failure to run or wait for the process. A non-zero exit is
// reported by ExitCode instead.
func (p *Process) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// ExitCode is -1 until the process exits and when it was killed by a signal.
func (p *Process) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Stderr returns the last lines the encoder wrote to standard error.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailWriter) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tailWriter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := string(t.buf)
	if i := strings.IndexByte(s, '\n'); i >= 0 && len(t.buf) == t.limit {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
