package rules

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// QueueStepKind identifies what decision a queued resolution step is waiting
// for.
type QueueStepKind string

const (
	StepTargetSelection      QueueStepKind = "TARGET_SELECTION"
	StepTriggerOrder         QueueStepKind = "TRIGGER_ORDER"
	StepSacrificeSelection   QueueStepKind = "SACRIFICE_SELECTION"
	StepScrySelection        QueueStepKind = "SCRY_SELECTION"
	StepSurveilSelection     QueueStepKind = "SURVEIL_SELECTION"
	StepBatchExploreDecision QueueStepKind = "BATCH_EXPLORE_DECISION"
	StepModalChoice          QueueStepKind = "MODAL_CHOICE"
	StepMayPayPrompt         QueueStepKind = "MAY_PAY_PROMPT"
	StepDiscardSelection     QueueStepKind = "DISCARD_SELECTION"
	StepSearchSelection      QueueStepKind = "SEARCH_SELECTION"
)

// Sentinel errors mapped to player-facing error codes by the action layer.
var (
	ErrStepNotActive    = fmt.Errorf("resolution step is not active")
	ErrNotAuthorized    = fmt.Errorf("player may not answer this step")
	ErrInvalidSelection = fmt.Errorf("selection does not satisfy the step")
)

// QueueStep is a suspended point in a resolution waiting for player input.
// The step describes the required decision as data; ContinuationKey tells the
// engine which resolution to resume once the answer arrives. No call stack is
// held open while a step waits.
type QueueStep struct {
	ID       string
	Kind     QueueStepKind
	PlayerID string // the only player allowed to answer
	SourceID string
	Prompt   string

	// Options are the candidate object IDs (or mode indices, or trigger IDs
	// for TRIGGER_ORDER). Selections must come from this set.
	Options []string
	// MinCount/MaxCount bound how many options must be selected. MaxCount -1
	// means unbounded.
	MinCount int
	MaxCount int
	// PerOption requires one decision per option rather than a subset
	// selection (batch decisions such as explore replacements).
	PerOption bool
	// Decisions enumerates the legal per-option or yes/no answers.
	Decisions []string

	ContinuationKey string
	Context         map[string]string
}

// QueueResponse is a player's answer to the active step.
type QueueResponse struct {
	StepID     string
	PlayerID   string
	Selections []string
	Decisions  map[string]string // option ID -> decision, for PerOption steps
}

// ResolutionQueue holds pending resolution steps for one game. Exactly one
// step is active at a time; steps added while another is active queue behind
// it in FIFO order. A completed step is removed, so a late or duplicate
// submission cannot match it again.
type ResolutionQueue struct {
	mu    sync.Mutex
	steps []QueueStep
}

// NewResolutionQueue creates an empty queue.
func NewResolutionQueue() *ResolutionQueue {
	return &ResolutionQueue{}
}

// Add enqueues a step and returns its ID, generating one if absent.
func (q *ResolutionQueue) Add(step QueueStep) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	q.steps = append(q.steps, step)
	return step.ID
}

// Active returns a copy of the currently active step, or nil when the queue
// is empty.
func (q *ResolutionQueue) Active() *QueueStep {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.steps) == 0 {
		return nil
	}
	step := q.steps[0]
	return &step
}

// List returns a copy of every pending step, active first.
func (q *ResolutionQueue) List() []QueueStep {
	q.mu.Lock()
	defer q.mu.Unlock()
	cpy := make([]QueueStep, len(q.steps))
	copy(cpy, q.steps)
	return cpy
}

// Len returns the number of pending steps.
func (q *ResolutionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steps)
}

// Submit answers the active step. The response is validated before the step
// is consumed: a failed validation leaves the step active and the queue
// unchanged. On success the step is removed and returned so the engine can
// resume its continuation. Only the step's assigned player may answer, and a
// response to anything but the active step is rejected, which also makes
// duplicate submissions fail after the first succeeds.
func (q *ResolutionQueue) Submit(resp QueueResponse) (QueueStep, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.steps) == 0 || q.steps[0].ID != resp.StepID {
		return QueueStep{}, fmt.Errorf("step %s: %w", resp.StepID, ErrStepNotActive)
	}
	step := q.steps[0]
	if resp.PlayerID != step.PlayerID {
		return QueueStep{}, fmt.Errorf("step %s assigned to %s: %w", step.ID, step.PlayerID, ErrNotAuthorized)
	}
	if err := validateResponse(step, resp); err != nil {
		return QueueStep{}, err
	}

	q.steps = q.steps[1:]
	return step, nil
}

// validateResponse performs shape validation per step kind.
func validateResponse(step QueueStep, resp QueueResponse) error {
	options := make(map[string]bool, len(step.Options))
	for _, opt := range step.Options {
		options[opt] = true
	}

	if step.PerOption {
		// One decision per referenced option, nothing extra.
		if len(resp.Decisions) != len(step.Options) {
			return fmt.Errorf("expected a decision for each of %d options, got %d: %w",
				len(step.Options), len(resp.Decisions), ErrInvalidSelection)
		}
		allowed := make(map[string]bool, len(step.Decisions))
		for _, d := range step.Decisions {
			allowed[d] = true
		}
		for opt, decision := range resp.Decisions {
			if !options[opt] {
				return fmt.Errorf("decision for unknown option %s: %w", opt, ErrInvalidSelection)
			}
			if len(allowed) > 0 && !allowed[decision] {
				return fmt.Errorf("decision %q not permitted: %w", decision, ErrInvalidSelection)
			}
		}
		return nil
	}

	seen := make(map[string]bool, len(resp.Selections))
	for _, sel := range resp.Selections {
		if !options[sel] {
			return fmt.Errorf("selection %s is not a legal option: %w", sel, ErrInvalidSelection)
		}
		if seen[sel] {
			return fmt.Errorf("selection %s repeated: %w", sel, ErrInvalidSelection)
		}
		seen[sel] = true
	}

	switch step.Kind {
	case StepTriggerOrder:
		// A full permutation of the pending triggers.
		if len(resp.Selections) != len(step.Options) {
			return fmt.Errorf("trigger order must list all %d triggers: %w", len(step.Options), ErrInvalidSelection)
		}
	case StepScrySelection, StepSurveilSelection:
		// Every looked-at card gets a disposition; selections are the cards
		// sent away (bottom for scry, graveyard for surveil), so any subset
		// of the options is legal.
	case StepMayPayPrompt:
		// Yes/no via a single selection drawn from the offered options.
		if len(resp.Selections) != 1 {
			return fmt.Errorf("prompt requires exactly one answer: %w", ErrInvalidSelection)
		}
	case StepModalChoice:
		if len(resp.Selections) < step.MinCount || len(resp.Selections) > step.MaxCount {
			return fmt.Errorf("choose between %d and %d modes: %w", step.MinCount, step.MaxCount, ErrInvalidSelection)
		}
	default:
		if len(resp.Selections) < step.MinCount {
			return fmt.Errorf("at least %d selections required: %w", step.MinCount, ErrInvalidSelection)
		}
		if step.MaxCount >= 0 && len(resp.Selections) > step.MaxCount {
			return fmt.Errorf("at most %d selections allowed: %w", step.MaxCount, ErrInvalidSelection)
		}
	}
	return nil
}
