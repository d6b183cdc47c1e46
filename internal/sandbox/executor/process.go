package executor

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// process is a started command. Wait results are cached so any number of
// goroutines may wait.
type process struct {
	cmd   *exec.Cmd
	out   *collector
	grace time.Duration
	done  chan struct{}
	code  int
	err   error
}

func (p *process) run(onExit func(*process)) {
	err := p.cmd.Wait()
	p.code = 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.code = exitErr.ExitCode()
		} else {
			p.code = -1
			p.err = err
		}
	}
	close(p.done)
	if onExit != nil {
		onExit(p)
	}
}

func (p *process) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

func (p *process) Output() string {
	return p.out.String()
}

// Kill interrupts the process and kills it if it is still running after
// the grace period.
func (p *process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return p.cmd.Process.Kill()
	}
	go func() {
		select {
		case <-p.done:
		case <-time.After(p.grace):
			_ = p.cmd.Process.Kill()
		}
	}()
	return nil
}
