package runtime

import (
	"context"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// escalate runs the free-text path: stream a reply, record it, and present the same node again.
// The assistant turn is always appended, empty when the exchange failed or was cancelled.
// Stream end closes every stream the completer opened, failed ones included.
func (e *Engine) escalate(ctx context.Context, s *domain.Session, res *Result, sink ports.EventSink, node *domain.Node, payload any) {
	exchangeID := e.newID()
	log := e.logger.With("conversation_id", s.ConversationID, "exchange_id", exchangeID)
	prompt := BuildPrompt(e.systemPrompt, s.Transcript)

	started := time.Now()
	reply, opened, err := e.stream(ctx, s.ConversationID, exchangeID, prompt, sink)

	if ctx.Err() != nil {
		// Partial text is discarded.
		s.Append(domain.SpeakerAssistant, "", e.now())
		res.Cancelled = true
		log.Debug("Free-text exchange cancelled", "discarded_bytes", len(reply))
		return
	}

	if opened {
		e.emit(ctx, sink, domain.EndEvent(s.ConversationID, exchangeID))
	}

	if err != nil {
		kind := Classify(err)
		res.Err = err
		e.metrics.Completion(time.Since(started), kind)
		log.Error("Free-text exchange failed", "kind", kind, "error", err)
		s.Append(domain.SpeakerAssistant, "", e.now())
		e.emit(ctx, sink, domain.NoticeEvent(s.ConversationID, kind, Notice(kind)))
	} else {
		e.metrics.Completion(time.Since(started), "")
		log.Debug("Free-text exchange completed", "bytes", len(reply))
		s.Append(domain.SpeakerAssistant, reply, e.now())
	}

	e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))
}

// stream forwards chunks to sink as they arrive and returns the concatenated text.
// opened is false when the completer refused the request before streaming.
// A stream that ends without text yields domain.ErrEmptyStream.
func (e *Engine) stream(ctx context.Context, conversationID, exchangeID string, prompt []domain.Message, sink ports.EventSink) (reply string, opened bool, err error) {
	chunks, err := e.completer.Stream(ctx, prompt)
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			drain(chunks)
			return b.String(), true, chunk.Err
		}
		if ctx.Err() != nil {
			drain(chunks)
			return b.String(), true, ctx.Err()
		}
		if chunk.Text == "" {
			continue
		}
		b.WriteString(chunk.Text)
		e.emit(ctx, sink, domain.ChunkEvent(conversationID, exchangeID, chunk.Text))
	}

	if err := ctx.Err(); err != nil {
		return b.String(), true, err
	}
	if b.Len() == 0 {
		return "", true, domain.ErrEmptyStream
	}
	return b.String(), true, nil
}

func drain(chunks <-chan domain.Chunk) {
	for range chunks {
	}
}
