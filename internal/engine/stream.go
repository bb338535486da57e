package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/domain"
)

// DefaultStepDelay paces step events so the terminal UI can animate.
const DefaultStepDelay = 450 * time.Millisecond

// StreamEvent is one SSE frame: the event name plus its JSON payload.
type StreamEvent struct {
	Name    string
	Payload any
}

// StepEvent is the payload of step and complete events. The terminal
// event carries Final plus the full result fields.
type StepEvent struct {
	Step      int                  `json:"step"`
	Total     int                  `json:"total"`
	Title     string               `json:"title"`
	Detail    string               `json:"detail"`
	Progress  int                  `json:"progress"`
	Indicator domain.IndicatorData `json:"indicator,omitempty"`
	Signals   []domain.Signal      `json:"signals,omitempty"`

	Final         bool                 `json:"final,omitempty"`
	Metrics       *domain.Metrics      `json:"metrics,omitempty"`
	IndicatorData domain.IndicatorData `json:"indicator_data,omitempty"`
	OutputType    string               `json:"output_type,omitempty"`
	Output        any                  `json:"output,omitempty"`
	Disclaimer    string               `json:"disclaimer,omitempty"`
}

// ErrorEvent is the payload of the terminal error event.
type ErrorEvent struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// Streamer narrates strategy execution as a finite, ordered event
// sequence: zero or more step events and exactly one terminal event.
type Streamer struct {
	runner *Runner

	// StepDelay is the pause after each non-final event. Zero disables
	// pacing; the default makes animation readable.
	StepDelay time.Duration
}

// NewStreamer wires the stream orchestrator over a runner.
func NewStreamer(runner *Runner) *Streamer {
	return &Streamer{runner: runner, StepDelay: DefaultStepDelay}
}

// Stream starts the narrated execution. The returned channel is closed
// after the terminal event; cancellation of ctx stops emission before the
// next event without a terminal frame.
func (s *Streamer) Stream(ctx context.Context, req RunRequest) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go s.run(ctx, req, out)
	return out
}

func (s *Streamer) run(ctx context.Context, req RunRequest, out chan<- StreamEvent) {
	defer close(out)
	if m := s.runner.metrics; m != nil {
		m.StreamsActive.Inc()
		defer m.StreamsActive.Dec()
	}

	p, err := s.runner.prepare(ctx, req)
	if err != nil {
		s.emitError(ctx, out, err)
		return
	}
	res, metrics, err := s.runner.execute(p, req.Interval)
	if err != nil {
		s.emitError(ctx, out, err)
		return
	}

	steps := buildScript(req.Strategy, p, res, metrics)
	for _, step := range steps {
		name := "step"
		if step.Final {
			name = "complete"
		}
		if !s.emit(ctx, out, StreamEvent{Name: name, Payload: step}) {
			log.Debug().Str("strategy", req.Strategy).Msg("stream canceled")
			return
		}
		if !step.Final && s.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.StepDelay):
			}
		}
	}
}

func (s *Streamer) emitError(ctx context.Context, out chan<- StreamEvent, err error) {
	log.Warn().Err(err).Msg("stream terminated with error")
	s.emit(ctx, out, StreamEvent{Name: "error", Payload: ErrorEvent{
		ErrorKind: string(domain.KindOf(err)),
		Message:   domain.MessageOf(err),
	}})
}

func (s *Streamer) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		if m := s.runner.metrics; m != nil {
			m.StreamEvents.WithLabelValues(ev.Name).Inc()
		}
		return true
	}
}
