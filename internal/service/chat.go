package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/edulearn/portal/internal/ai"
	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/metrics"
	"github.com/edulearn/portal/internal/model"
	"github.com/edulearn/portal/internal/repository"
)

const (
	emptyReply      = "Sorry, ik kon geen antwoord genereren. Probeer het opnieuw."
	chatFailedReply = "Er is een fout opgetreden bij het verwerken van je bericht. Probeer het later opnieuw."

	contextSeparator = "\n\n---\n\n"

	// nlDate renders dates the way Dutch readers expect: 17-10-2026.
	nlDate = "2-1-2006"
)

const promptIntro = "Je bent een behulpzame AI-studieassistent voor Nederlandse scholieren. Je spreekt Nederlands en helpt studenten met hun vragen over school en "

const promptRulesHead = `Belangrijke instructies:
- Antwoord altijd in het Nederlands
- Wees behulpzaam, duidelijk en educatief
- Leg dingen stap voor stap uit als dat nodig is
- Geef voorbeelden om concepten te verduidelijken`

const promptRuleSource = "\n- Als je naar specifieke informatie uit de studiematerialen verwijst, noem dan welke bron je gebruikt"

const promptRulesTail = "\n- Moedig de student aan en geef studietips"

// ChatService answers study questions with the AI assistant, grounded in the
// portal's own materials and agenda.
//
// MODEL FALLBACK:
// models is the allow-list from AI_MODELS. The requested model is tried first
// (when allowed), then the remaining entries in configured order. The first
// successful completion wins; only when all fail does the caller see an error.
type ChatService struct {
	completer ai.Completer
	materials repository.MaterialRepository
	agenda    repository.AgendaRepository
	models    []string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewChatService(
	completer ai.Completer,
	materials repository.MaterialRepository,
	agenda repository.AgendaRepository,
	models []string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		completer: completer,
		materials: materials,
		agenda:    agenda,
		models:    slices.Clone(models),
		metrics:   m,
		logger:    logger,
	}
}

// Models returns the allow-list, default first.
func (s *ChatService) Models() []string {
	return slices.Clone(s.models)
}

type ChatInput struct {
	Message  string              `json:"message" validate:"required" msg:"Bericht is vereist"`
	FileID   string              `json:"fileId"`
	AgendaID string              `json:"agendaId"`
	Subject  string              `json:"subject"`
	Model    string              `json:"model"`
	History  []model.ChatMessage `json:"history"`
}

type ChatReply struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

func (s *ChatService) Ask(ctx context.Context, actor *model.User, in ChatInput) (*ChatReply, error) {
	if err := auth.RequireUser(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Message) == "" {
		in.Message = ""
	}
	if err := check(in); err != nil {
		return nil, err
	}

	studyContext, err := s.buildContext(ctx, strings.TrimSpace(in.FileID), strings.TrimSpace(in.AgendaID), strings.TrimSpace(in.Subject))
	if err != nil {
		return nil, err
	}

	messages := make([]ai.Message, 0, len(in.History)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt(studyContext)})
	for _, h := range in.History {
		// Only earlier user/assistant turns; a client cannot inject a system prompt.
		if h.Role != ai.RoleUser && h.Role != ai.RoleAssistant {
			continue
		}
		messages = append(messages, ai.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: in.Message})

	var errs []error
	for _, m := range s.candidates(in.Model) {
		reply, err := s.completer.Complete(ctx, m, messages)
		if err != nil {
			s.metrics.AICompletion(m, metrics.OutcomeFailure)
			s.logger.Warn("ai completion failed", slog.String("model", m), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		s.metrics.AICompletion(m, metrics.OutcomeSuccess)
		if strings.TrimSpace(reply) == "" {
			reply = emptyReply
		}
		return &ChatReply{Message: reply, Model: m}, nil
	}

	return nil, apperror.Upstream(chatFailedReply, errors.Join(errs...))
}

// candidates orders the models to try. An unknown requested model is ignored.
func (s *ChatService) candidates(requested string) []string {
	requested = strings.TrimSpace(requested)
	if requested == "" || !slices.Contains(s.models, requested) {
		return s.models
	}
	out := make([]string, 0, len(s.models))
	out = append(out, requested)
	for _, m := range s.models {
		if m != requested {
			out = append(out, m)
		}
	}
	return out
}

// buildContext assembles the study material quoted in the system prompt.
//
//	fileId / agendaId → exactly those items (missing ids are skipped)
//	subject only      → all materials and tests of that subject
//	nothing           → every material, labelled with its subject
func (s *ChatService) buildContext(ctx context.Context, fileID, agendaID, subject string) (string, error) {
	var parts []string

	if fileID != "" {
		m, err := s.materials.GetMaterial(ctx, fileID)
		switch {
		case err == nil:
			parts = append(parts, fmt.Sprintf("Lesmateriaal: %s\nVak: %s\nBeschrijving: %s\n\nInhoud:\n%s",
				m.Title, m.Subject, m.Description, m.Content))
		case !errors.Is(err, apperror.ErrNotFound):
			return "", fmt.Errorf("service/chat: loading material: %w", err)
		}
	}

	if agendaID != "" {
		a, err := s.agenda.GetAgendaItem(ctx, agendaID)
		switch {
		case err == nil:
			parts = append(parts, fmt.Sprintf("Toets: %s\nVak: %s\nType: %s\nDatum: %s\nBeschrijving: %s",
				a.Title, a.Subject, a.Type, a.TestDate.Format(nlDate), describe(a.Description)))
		case !errors.Is(err, apperror.ErrNotFound):
			return "", fmt.Errorf("service/chat: loading agenda item: %w", err)
		}
	}

	if fileID != "" || agendaID != "" {
		return strings.Join(parts, contextSeparator), nil
	}

	if subject != "" {
		materials, err := s.materials.ListMaterials(ctx, subject)
		if err != nil {
			return "", fmt.Errorf("service/chat: listing materials: %w", err)
		}
		items, err := s.agenda.ListAgenda(ctx, subject)
		if err != nil {
			return "", fmt.Errorf("service/chat: listing agenda: %w", err)
		}

		if len(materials) > 0 {
			blocks := make([]string, len(materials))
			for i, m := range materials {
				blocks[i] = fmt.Sprintf("Lesmateriaal: %s\nBeschrijving: %s\n\nInhoud:\n%s", m.Title, m.Description, m.Content)
			}
			parts = append(parts, strings.Join(blocks, contextSeparator))
		}
		if len(items) > 0 {
			blocks := make([]string, len(items))
			for i, a := range items {
				blocks[i] = fmt.Sprintf("Toets: %s\nType: %s\nDatum: %s\nBeschrijving: %s",
					a.Title, a.Type, a.TestDate.Format(nlDate), describe(a.Description))
			}
			parts = append(parts, "Geplande toetsen:\n"+strings.Join(blocks, "\n\n"))
		}
		return strings.Join(parts, contextSeparator), nil
	}

	materials, err := s.materials.ListMaterials(ctx, "")
	if err != nil {
		return "", fmt.Errorf("service/chat: listing materials: %w", err)
	}
	for _, m := range materials {
		parts = append(parts, fmt.Sprintf("Vak: %s\nLesmateriaal: %s\nBeschrijving: %s\n\nInhoud:\n%s",
			m.Subject, m.Title, m.Description, m.Content))
	}
	return strings.Join(parts, contextSeparator), nil
}

func describe(d *string) string {
	if d == nil || strings.TrimSpace(*d) == "" {
		return "Geen beschrijving"
	}
	return *d
}

func systemPrompt(studyContext string) string {
	if studyContext == "" {
		return promptIntro + "leren.\n\n" + promptRulesHead + promptRulesTail
	}
	return promptIntro + "studiematerialen. Je hebt toegang tot de volgende studiematerialen en toetsinformatie:\n\n" +
		studyContext + "\n\n" + promptRulesHead + promptRuleSource + promptRulesTail
}
