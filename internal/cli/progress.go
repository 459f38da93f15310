package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// PlanProgress reports the phases of a planning pass as they run:
// compiling documents, diffing against the snapshot, ordering the
// plan. On a terminal the current phase animates in place; on a pipe
// each phase prints once as it starts, so logs keep a readable trail.
type PlanProgress struct {
	mu      sync.Mutex
	writer  io.Writer
	phase   string
	frames  []string
	frame   int
	ticking bool
	stop    chan struct{}
}

// SpinnerFrames are the animation frames used on Unicode terminals.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerFramesASCII are the fallback frames for dumb terminals.
var SpinnerFramesASCII = []string{"|", "/", "-", "\\"}

// NewPlanProgress returns a reporter writing to stderr, keeping stdout
// free for the plan itself.
func NewPlanProgress() *PlanProgress {
	frames := SpinnerFrames
	if !EnableColors() {
		frames = SpinnerFramesASCII
	}
	return &PlanProgress{
		writer: os.Stderr,
		frames: frames,
	}
}

// Phase switches the reporter to a new phase of the pass.
func (p *PlanProgress) Phase(name string) {
	if !EnableColors() {
		fmt.Fprintf(p.writer, "%s...\n", name)
		return
	}

	p.mu.Lock()
	p.phase = name
	starting := !p.ticking
	if starting {
		p.ticking = true
		p.stop = make(chan struct{})
	}
	p.mu.Unlock()

	if starting {
		go p.animate()
	}
}

// animate redraws the current phase until the reporter stops.
func (p *PlanProgress) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			line := Progress(p.frames[p.frame]) + " " + p.phase
			p.frame = (p.frame + 1) % len(p.frames)
			p.mu.Unlock()
			fmt.Fprintf(p.writer, "\r%s", line)
		}
	}
}

// Clear stops the animation and erases the phase line, for when the
// plan output that follows is its own report.
func (p *PlanProgress) Clear() {
	if !EnableColors() {
		return
	}

	p.mu.Lock()
	if !p.ticking {
		p.mu.Unlock()
		return
	}
	p.ticking = false
	close(p.stop)
	width := len(p.phase) + 10
	p.mu.Unlock()

	fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", width))
}

// Done stops the reporter and prints a completion line.
func (p *PlanProgress) Done(message string) {
	p.Clear()
	fmt.Fprintln(p.writer, Success("✓")+" "+message)
}

// Fail stops the reporter and prints a failure line.
func (p *PlanProgress) Fail(message string) {
	p.Clear()
	fmt.Fprintln(p.writer, Failed("✗")+" "+message)
}
