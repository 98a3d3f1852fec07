package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"aifiles/internal/intake"
	"aifiles/internal/logging"
	"aifiles/internal/models"
	"aifiles/internal/summary"
)

var (
	ErrGenerationInFlight = errors.New("a summary is already being generated")
	ErrNoDocument         = errors.New("upload a file first")
	ErrEmptyInstruction   = errors.New("instructions are required")
	ErrWrongScreen        = errors.New("action not available on this screen")
	ErrNotEditing         = errors.New("summary is not in edit mode")
	ErrEmptySummary       = errors.New("summarizer returned an empty summary")
)

const readFailureMessage = "Failed to read file content"

// Processor validates and extracts an upload.
type Processor interface {
	Process(ctx context.Context, f intake.File) (*models.UploadedDocument, error)
}

// Controller owns the single session and applies transitions one at a time.
// Views observe it through Snapshot and Subscribe.
type Controller struct {
	mu         sync.Mutex
	state      models.SessionState
	epoch      uint64 // bumped by Back so a late generation result is dropped
	intake     Processor
	summarizer summary.Summarizer
	delay      time.Duration
	subs       map[models.SessionChan]struct{}
}

func NewController(intake Processor, summarizer summary.Summarizer, delay time.Duration) *Controller {
	if summarizer == nil {
		summarizer = summary.Rules{}
	}
	if delay < 0 {
		delay = 0
	}
	return &Controller{
		state:      models.InitialSession(),
		intake:     intake,
		summarizer: summarizer,
		delay:      delay,
		subs:       make(map[models.SessionChan]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving a snapshot after every transition.
// Slow readers miss intermediate snapshots, never the latest one.
func (c *Controller) Subscribe() (models.SessionChan, func()) {
	ch := make(models.SessionChan, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// publishLocked must be called with c.mu held.
func (c *Controller) publishLocked() {
	snap := c.state
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Upload validates and extracts f and attaches it, replacing any earlier document.
// A refused or unreadable file leaves the previous document in place and records the reason.
func (c *Controller) Upload(ctx context.Context, f intake.File) (*models.UploadedDocument, error) {
	c.mu.Lock()
	if c.state.Screen != models.ScreenIntake {
		c.mu.Unlock()
		return nil, ErrWrongScreen
	}
	if c.state.IsGenerating {
		c.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	c.mu.Unlock()

	doc, err := c.intake.Process(ctx, f)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsGenerating {
		return nil, ErrGenerationInFlight
	}
	if c.state.Screen != models.ScreenIntake {
		return nil, ErrWrongScreen
	}
	if err != nil {
		var vErr *intake.ValidationError
		if errors.As(err, &vErr) {
			c.state.LastError = vErr.Reason
		} else {
			c.state.LastError = readFailureMessage
		}
		c.publishLocked()
		return nil, err
	}
	c.state.Document = doc
	c.state.LastError = ""
	c.publishLocked()
	log.Printf("[session] attached %s (%d bytes)", doc.Name, doc.SizeBytes)
	return doc, nil
}

// SetInstruction stores the draft instruction on the intake screen.
func (c *Controller) SetInstruction(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Screen != models.ScreenIntake || c.state.IsGenerating {
		return ErrWrongScreen
	}
	c.state.Instruction = text
	c.publishLocked()
	return nil
}

// Generate freezes the instruction, waits the configured delay and stores the summary.
// Once started it runs to completion even if ctx is cancelled.
// The started callback, when set, runs after the guards pass.
func (c *Controller) Generate(ctx context.Context, instruction string, started func(models.SessionState)) (models.SessionState, error) {
	c.mu.Lock()
	if c.state.IsGenerating {
		c.mu.Unlock()
		return models.SessionState{}, ErrGenerationInFlight
	}
	if c.state.Screen != models.ScreenIntake {
		c.mu.Unlock()
		return models.SessionState{}, ErrWrongScreen
	}
	if c.state.Document == nil {
		c.mu.Unlock()
		return models.SessionState{}, ErrNoDocument
	}
	if strings.TrimSpace(instruction) == "" {
		c.mu.Unlock()
		return models.SessionState{}, ErrEmptyInstruction
	}
	c.state.Instruction = instruction
	c.state.IsGenerating = true
	c.state.LastError = ""
	doc := c.state.Document
	epoch := c.epoch
	c.publishLocked()
	snap := c.state
	c.mu.Unlock()

	if started != nil {
		started(snap)
	}

	runCtx := context.WithoutCancel(ctx)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	text, err := c.summarizer.Summarize(runCtx, doc, instruction)
	if err == nil && text == "" {
		err = ErrEmptySummary
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsGenerating = false
	if epoch != c.epoch {
		logging.Debugf("[session] dropping summary for %s after back-navigation", doc.Name)
		c.publishLocked()
		return c.state, nil
	}
	if err != nil {
		c.state.LastError = err.Error()
		c.publishLocked()
		return c.state, fmt.Errorf("generate summary: %w", err)
	}
	c.state.SummaryText = text
	c.state.Screen = models.ScreenResults
	c.state.Editing = false
	c.publishLocked()
	log.Printf("[session] summary ready for %s (%s)", doc.Name, summary.Classify(instruction))
	return c.state, nil
}

// ToggleEdit flips between viewing and editing the summary.
func (c *Controller) ToggleEdit() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Screen != models.ScreenResults {
		return false, ErrWrongScreen
	}
	c.state.Editing = !c.state.Editing
	c.publishLocked()
	return c.state.Editing, nil
}

// Edit replaces the summary text verbatim; an empty text is allowed.
func (c *Controller) Edit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Screen != models.ScreenResults {
		return ErrWrongScreen
	}
	if !c.state.Editing {
		return ErrNotEditing
	}
	c.state.SummaryText = text
	c.publishLocked()
	return nil
}

// Back returns to an empty intake screen. An in-flight generation keeps running
// but its result is discarded.
func (c *Controller) Back() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	generating := c.state.IsGenerating
	c.state = models.InitialSession()
	c.state.IsGenerating = generating
	c.epoch++
	c.publishLocked()
	return c.state
}
