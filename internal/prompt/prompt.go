package prompt

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation.
type Turn struct {
	Role    Role
	Content string
}

const (
	historyTurns = 4
	historyRunes = 200
)

// Instructions are appended to every prompt, in order.
var Instructions = []string{
	"Analise CUIDADOSAMENTE os dados fornecidos acima",
	"Use NÚMEROS e ESTATÍSTICAS REAIS dos dados",
	"Se filtros foram aplicados, foque APENAS nos dados filtrados",
	"Seja ESPECÍFICO e PRÁTICO",
	"Formate bem a resposta com títulos e seções claras usando markdown",
	"Use bullet points quando apropriado",
	"Se pedirem visualização, descreva qual tipo seria útil",
	"Se pedirem plano de aula: estruture em 4 momentos de 50 minutos total",
	"Se pedirem plano de ação: inclua diagnóstico, objetivos SMART, ações, cronograma",
	"Se pedirem formação: inclua módulos, oficinas práticas, boas práticas",
}

// Input is everything that goes into one generation request.
type Input struct {
	Persona  Persona
	Context  string
	History  []Turn
	Question string
}

// Build assembles the prompt: role instructions, data context, recent
// history, selected persona, the question and the fixed instructions.
func Build(in Input) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(in.Persona.Instructions())
	b.WriteString("\n\n")
	b.WriteString(in.Context)
	b.WriteString("\n\n")
	b.WriteString(History(in.History))
	b.WriteString("\n\n=== FOCO SELECIONADO ===\n")
	b.WriteString(in.Persona.Name())
	b.WriteString("\n\n=== PERGUNTA DO USUÁRIO ===\n")
	b.WriteString(in.Question)
	b.WriteString("\n\n=== INSTRUÇÕES CRÍTICAS ===\n")
	for i, line := range Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	b.WriteString("\nRESPONDA AGORA DE FORMA COMPLETA E ESTRUTURADA:\n")
	return b.String()
}

// History renders the last turns, each cut to a fixed number of runes. It
// returns "" for an empty history.
func History(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}
	var b strings.Builder
	b.WriteString("\n=== HISTÓRICO RECENTE ===\n")
	for _, t := range turns {
		role := "ASSISTENTE"
		if t.Role == RoleUser {
			role = "USUÁRIO"
		}
		fmt.Fprintf(&b, "%s: %s...\n", role, utils.TruncateRunes(t.Content, historyRunes))
	}
	return b.String()
}
