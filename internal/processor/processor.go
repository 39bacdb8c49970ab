package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/namikmesic/streamgate/internal/bus"
	"github.com/namikmesic/streamgate/internal/codec"
	"github.com/namikmesic/streamgate/internal/metrics"
	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Processor handles background analytics for tapped SSE responses. It sits
// off the request path: the proxy publishes raw upstream chunks to the bus
// and the processor parses them again on its own schedule.
type Processor struct {
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func New(m *metrics.Metrics) *Processor {
	return &Processor{metrics: m}
}

// Summary is the outcome of processing one tapped stream.
type Summary struct {
	RequestID        string
	Events           int
	ConversionErrors int
	Done             bool
	Usage            Usage
	Err              error
}

// StartConsumer subscribes to the tap and processes every stream in its own
// goroutine until ctx is done. Call Wait after cancelling ctx.
func (p *Processor) StartConsumer(ctx context.Context, nc *nats.Conn) (*bus.Demux, error) {
	return bus.Subscribe(nc, func(requestID string, src stream.Source) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.ProcessStream(ctx, requestID, src)
		}()
	})
}

// Wait blocks until every stream started by StartConsumer has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// ProcessStream parses SSE events from src and extracts token usage from
// Anthropic message_start/message_delta and OpenAI completion chunks.
func (p *Processor) ProcessStream(ctx context.Context, requestID string, src stream.Source) Summary {
	start := time.Now()
	summary := Summary{RequestID: requestID}
	events := stream.NewStream[UsageUpdate](src, codec.UntilDone[UsageUpdate]{Inner: UsageConverter{}})

	for u, err := range events.All(ctx) {
		switch {
		case err == nil:
			summary.Events++
			summary.Usage.Apply(u)
		case errors.Is(err, codec.ErrDone):
			summary.Events++
			summary.Done = true
		case errors.Is(err, streamerr.ErrConversion):
			summary.Events++
			summary.ConversionErrors++
			p.metrics.ObserveError(err)
		default:
			summary.Err = err
			p.metrics.ObserveError(err)
		}
	}

	p.metrics.ObserveTokens(summary.Usage.InputTokens, summary.Usage.OutputTokens)

	logEvent := log.Debug()
	if summary.Err != nil {
		logEvent = log.Warn().Err(summary.Err)
	}
	logEvent.
		Str("request_id", requestID).
		Int("sse_events", summary.Events).
		Int("conversion_errors", summary.ConversionErrors).
		Str("model", summary.Usage.Model).
		Int("input_tokens", summary.Usage.InputTokens).
		Int("output_tokens", summary.Usage.OutputTokens).
		Int("total_tokens", summary.Usage.TotalTokens()).
		Str("stop_reason", summary.Usage.StopReason).
		Bool("done_sentinel", summary.Done).
		Dur("duration", time.Since(start)).
		Msg("stream processing complete")

	return summary
}
