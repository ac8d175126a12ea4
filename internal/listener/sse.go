package listener

import (
	"context"
	"fmt"
	"time"

	jsoncodec "github.com/goccy/go-json"
	"github.com/r3labs/sse"

	"github.com/hanssonlabs/puckline/internal/telemetry"
)

// SSEListener is the streaming transport: a long-lived event-stream
// subscription to <sse-base>?gameUuid=<uuid>.
type SSEListener struct {
	*Listener
}

func NewSSE(l *Listener) *SSEListener { return &SSEListener{Listener: l} }

// Run opens the SSE subscription and processes frames until the game
// finishes and idles out, the idle timer fires a restart request, or ctx is
// cancelled (orchestrator shutdown).
func (s *SSEListener) Run(ctx context.Context) ExitReason {
	url := fmt.Sprintf("%s?gameUuid=%s", s.Client.SSEBase(), s.GameUUID)
	client := sse.NewClient(url)

	events := make(chan *sse.Event)
	if err := client.SubscribeChanRaw(events); err != nil {
		telemetry.Warnf("listener[%s]: sse subscribe failed: %v", s.GameUUID, err)
		return ExitIdleRestart
	}
	defer client.Unsubscribe(events)

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExitCancelled
		case <-idle.C:
			return s.onIdle(ctx)
		case ev, ok := <-events:
			if !ok {
				return ExitIdleRestart
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
			s.handleFrame(ev.Data)
		}
	}
}

// handleFrame dispatches one decoded SSE frame to the matching handler.
func (s *SSEListener) handleFrame(raw []byte) {
	var env frameEnvelope
	if err := jsoncodec.Unmarshal(raw, &env); err != nil {
		telemetry.Warnf("listener[%s]: malformed sse frame: %v", s.GameUUID, err)
		return
	}

	switch env.Kind {
	case frameGameReport:
		var f gameReportFrame
		if err := jsoncodec.Unmarshal(env.Data, &f); err == nil {
			s.handleGameReport(f)
		}
	case framePlayByPlay:
		var f playByPlayFrame
		if err := jsoncodec.Unmarshal(env.Data, &f); err == nil {
			s.handlePlayByPlay(f)
		}
	case frameLiveEvent:
		var f liveEventFrame
		if err := jsoncodec.Unmarshal(env.Data, &f); err == nil {
			s.handleLiveEvent(f)
		}
	case frameLiveState:
		var f liveStateFrame
		if err := jsoncodec.Unmarshal(env.Data, &f); err == nil {
			s.handleLiveState(f)
		}
	case frameGameTime:
		var f gameTimeFrame
		if err := jsoncodec.Unmarshal(env.Data, &f); err == nil {
			s.handleGameTime(f)
		}
	case frameTeamStatistics:
		// Cached opportunistically by the orchestrator's detail back-fill;
		// nothing consumes the raw frame itself.
	default:
		telemetry.Debugf("listener[%s]: unknown sse frame kind %q", s.GameUUID, env.Kind)
	}
}
