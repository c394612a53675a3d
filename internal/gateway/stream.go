package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Stream runs the request against the candidate chain: the primary model
// followed by its fallbacks, strictly in order. Retryable failures before any
// output are retried in place; quota failures advance the chain silently; an
// error after partial output is terminal. The returned channel ends with one
// complete or error event, or closes bare on cancellation.
func (s *Service) Stream(ctx context.Context, req *api.StreamRequest) <-chan api.Event {
	out := make(chan api.Event)
	go func() {
		defer close(out)
		s.runChain(ctx, req, out)
	}()
	return out
}

type attemptOutcome int

const (
	outcomeDone      attemptOutcome = iota // terminal event forwarded, stop
	outcomeAdvance                         // candidate suppressed, try the next
	outcomeCancelled                       // caller gone, stop silently
)

func (s *Service) runChain(ctx context.Context, req *api.StreamRequest, out chan<- api.Event) {
	queue := append([]string{req.Model}, req.FallbackModels...)
	tried := make(map[string]bool)
	var skipped []string
	depth := 0

	for len(queue) > 0 {
		modelID := queue[0]
		queue = queue[1:]
		if tried[modelID] {
			continue
		}
		tried[modelID] = true

		rt, err := s.resolve(ctx, modelID, req.Provider)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", modelID, err))
			s.log.Debug("candidate skipped", zap.String("model", modelID), zap.Error(err))
			continue
		}

		outcome, reason := s.streamCandidate(ctx, rt, req, out, depth)
		depth++
		switch outcome {
		case outcomeDone, outcomeCancelled:
			return
		case outcomeAdvance:
			skipped = append(skipped, fmt.Sprintf("%s: %s", modelID, reason))
			// Same-provider degradation first: a same-tier sibling may still
			// have quota when only one model's pool is exhausted.
			if alt, ok := s.catalog.FindAlternative(rt.model.ID); ok && !tried[alt.ID] {
				queue = append([]string{alt.ID}, queue...)
			}
		}
	}

	detail := "no candidates were attempted"
	if len(skipped) > 0 {
		detail = strings.Join(skipped, "; ")
	}
	s.emit(ctx, out, api.Errorf("all candidates exhausted: %s", detail))
}

// streamCandidate runs one candidate to its terminal event, retrying in place
// while the provider fails retryably without having produced output.
func (s *Service) streamCandidate(ctx context.Context, rt route, req *api.StreamRequest, out chan<- api.Event, depth int) (attemptOutcome, string) {
	candidateReq := *req
	candidateReq.Model = rt.model.Upstream()

	started := time.Now()
	outcome := outcomeDone
	var (
		reason  string
		decided bool
		usage   api.Usage
		emitted bool
	)

	finish := func(o attemptOutcome, r string) {
		outcome, reason, decided = o, r, true
	}

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		attemptEmitted, attemptUsage, terminal, open := s.forwardAttempt(ctx, rt, &candidateReq, out)
		emitted = emitted || attemptEmitted
		mergeUsage(&usage, attemptUsage)

		if !open {
			if ctx.Err() == nil {
				// The provider closed its channel with no terminal event and
				// nobody cancelled: the caller still must see a terminal.
				ev := api.Errorf("provider %q ended the stream without a terminal event", rt.name)
				s.finishEvent(ctx, out, rt, ev)
				s.logRequest(ctx, rt, depth, usage, started, "error", "", ev.Message)
				finish(outcomeDone, "")
				return nil
			}
			s.logRequest(ctx, rt, depth, usage, started, "cancelled", "", "")
			finish(outcomeCancelled, "")
			return nil
		}
		if terminal.Type == api.EventComplete {
			s.breaker.RecordSuccess(rt.name)
			s.finishEvent(ctx, out, rt, terminal)
			s.logRequest(ctx, rt, depth, usage, started, "complete", terminal.StopReason, "")
			finish(outcomeDone, "")
			return nil
		}

		terminalErr := terminal.Err
		if terminalErr == nil {
			terminalErr = errors.New(terminal.Message)
		}

		if emitted {
			// Partial output already reached the caller; rewinding is not
			// possible, so the failure is terminal regardless of its class.
			s.finishEvent(ctx, out, rt, terminal)
			s.logRequest(ctx, rt, depth, usage, started, "error", "", terminal.Message)
			finish(outcomeDone, "")
			return nil
		}
		if s.quota.IsQuota(terminalErr) {
			s.breaker.RecordFailure(rt.name)
			s.log.Info("candidate out of quota, advancing",
				zap.String("provider", rt.name),
				zap.String("model", rt.model.ID))
			s.logRequest(ctx, rt, depth, usage, started, "error", "", terminal.Message)
			finish(outcomeAdvance, terminal.Message)
			return nil
		}
		// Let the retry policy classify: retryable errors are retried with
		// backoff, everything else comes straight back.
		return terminalErr
	})

	if decided {
		return outcome, reason
	}
	if ctx.Err() != nil {
		s.logRequest(ctx, rt, depth, usage, started, "cancelled", "", "")
		return outcomeCancelled, ""
	}
	if err != nil {
		// Retries exhausted or the error was never retryable: it surfaces
		// verbatim as the terminal event.
		s.finishEvent(ctx, out, rt, api.ErrorEvent(err))
		s.logRequest(ctx, rt, depth, usage, started, "error", "", err.Error())
	}
	return outcomeDone, ""
}

// forwardAttempt streams one provider attempt, forwarding every non-terminal
// event. It returns whether output was emitted, the accumulated usage, the
// terminal event, and whether the stream ended with one at all (a bare close
// means cancellation upstream).
func (s *Service) forwardAttempt(ctx context.Context, rt route, req *api.StreamRequest, out chan<- api.Event) (bool, api.Usage, api.Event, bool) {
	var (
		emitted bool
		usage   api.Usage
	)
	for ev := range rt.provider.StreamResponse(ctx, req) {
		if ev.Terminal() {
			return emitted, usage, ev, true
		}
		if ev.Type == api.EventUsageUpdate && ev.Usage != nil {
			mergeUsage(&usage, *ev.Usage)
		}
		if ev.Output() {
			emitted = true
		}
		ev.Provider = rt.name
		ev.Model = rt.model.ID
		if !s.emit(ctx, out, ev) {
			return emitted, usage, api.Event{}, false
		}
	}
	return emitted, usage, api.Event{}, false
}

// finishEvent stamps and forwards a terminal event.
func (s *Service) finishEvent(ctx context.Context, out chan<- api.Event, rt route, ev api.Event) {
	ev.Provider = rt.name
	ev.Model = rt.model.ID
	s.emit(ctx, out, ev)
}

func (s *Service) emit(ctx context.Context, out chan<- api.Event, ev api.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func mergeUsage(dst *api.Usage, src api.Usage) {
	if src.PromptTokens > 0 {
		dst.PromptTokens = src.PromptTokens
	}
	if src.CompletionTokens > 0 {
		dst.CompletionTokens = src.CompletionTokens
	}
	if src.ReasoningTokens > 0 {
		dst.ReasoningTokens = src.ReasoningTokens
	}
}

func (s *Service) logRequest(ctx context.Context, rt route, depth int, usage api.Usage, started time.Time, outcome, stopReason, errMsg string) {
	if s.repo == nil {
		return
	}
	entry := &model.RequestLog{
		Provider:         rt.name,
		Model:            rt.model.ID,
		Outcome:          outcome,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		ReasoningTokens:  usage.ReasoningTokens,
		FallbackDepth:    depth,
		LatencyMS:        time.Since(started).Milliseconds(),
	}
	if stopReason != "" {
		entry.StopReason = sql.NullString{String: stopReason, Valid: true}
	}
	if errMsg != "" {
		entry.ErrorMessage = sql.NullString{String: errMsg, Valid: true}
	}
	// Accounting must survive caller cancellation.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.Requests().Log(logCtx, entry); err != nil {
		s.log.Warn("request not logged", zap.Error(err))
	}
}
