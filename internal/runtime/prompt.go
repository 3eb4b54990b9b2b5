package runtime

import "github.com/aretw0/parley/pkg/domain"

// DefaultSystemPrompt primes the model for the free-text detours of a workflow.
const DefaultSystemPrompt = "You are in a conversation, keep your answers brief, always ask follow-up questions, ask if ready for full answer."

// BuildPrompt turns a transcript into a completion prompt led by the system message.
// Assistant turns without text (failed or cancelled exchanges) are left out.
func BuildPrompt(system string, transcript []domain.Turn) []domain.Message {
	msgs := make([]domain.Message, 0, len(transcript)+1)
	if system != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: system})
	}
	for _, t := range transcript {
		switch t.Speaker {
		case domain.SpeakerUser:
			msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: t.Text})
		case domain.SpeakerAssistant:
			if t.Text == "" {
				continue
			}
			msgs = append(msgs, domain.Message{Role: domain.RoleAssistant, Content: t.Text})
		}
	}
	return msgs
}
