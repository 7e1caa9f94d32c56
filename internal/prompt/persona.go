package prompt

import (
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// Persona is the audience a reply is written for.
type Persona int

const (
	Management Persona = iota
	Teachers
	Trainers
)

// Personas lists every persona in display order.
var Personas = []Persona{Management, Teachers, Trainers}

// Key is the short identifier used by flags and config.
func (p Persona) Key() string {
	switch p {
	case Teachers:
		return "teachers"
	case Trainers:
		return "trainers"
	}
	return "management"
}

// Name is the display name, also echoed in the prompt.
func (p Persona) Name() string {
	switch p {
	case Teachers:
		return "Professores"
	case Trainers:
		return "Professores Especialistas"
	}
	return "Equipe Gestora"
}

func (p Persona) String() string { return p.Name() }

// Description is a one-line summary of what the persona produces.
func (p Persona) Description() string {
	switch p {
	case Teachers:
		return "👨‍🏫 Planos de aula lúdicos e gamificados (50 min)"
	case Trainers:
		return "🎓 Formações, oficinas e boas práticas"
	}
	return "📊 Planos de ação, análises estratégicas e indicadores"
}

// Instructions returns the role block placed at the top of the prompt.
func (p Persona) Instructions() string {
	switch p {
	case Teachers:
		return teachersInstructions
	case Trainers:
		return trainersInstructions
	}
	return managementInstructions
}

// Suggestions returns starter questions. For management the first one names
// schoolCode when it is known.
func (p Persona) Suggestions(schoolCode string) []string {
	switch p {
	case Teachers:
		return []string{
			"Crie um plano de aula gamificado sobre frações para 5º ano",
			"Desenvolva atividades lúdicas para interpretação de texto",
			"Plano de aula de 50 minutos sobre sistema solar",
			"Como trabalhar operações matemáticas de forma divertida?",
		}
	case Trainers:
		return []string{
			"Desenvolva formação sobre metodologias ativas",
			"Crie oficina prática sobre avaliação formativa",
			"Quais estratégias para trabalhar habilidades em defasagem?",
			"Programa de formação sobre gamificação",
		}
	}
	first := "Analise os resultados gerais"
	if schoolCode != "" {
		first = "Analise os resultados da escola código " + schoolCode
	}
	return []string{
		first,
		"Quais turmas precisam de mais atenção?",
		"Crie um plano de ação para melhorar matemática no 6º ano",
		"Compare o desempenho entre as turmas",
	}
}

// ParsePersona accepts a key or display name, case-insensitively. Unknown
// values fall back to Management with ok=false.
func ParsePersona(s string) (Persona, bool) {
	v := dataset.Fold(strings.TrimSpace(s))
	for _, p := range Personas {
		if v == p.Key() || v == dataset.Fold(p.Name()) {
			return p, true
		}
	}
	switch v {
	case "gestao", "gestora", "equipe":
		return Management, true
	case "professores", "professor":
		return Teachers, true
	case "especialistas", "formadores":
		return Trainers, true
	}
	return Management, false
}

const managementInstructions = `
VOCÊ É UM ESPECIALISTA EM GESTÃO EDUCACIONAL.
Analise os dados sob perspectiva estratégica:
- Identifique padrões e tendências nos resultados REAIS dos dados
- Use NÚMEROS ESPECÍFICOS dos dados fornecidos
- Foque em métricas agregadas (por escola, turma, disciplina)
- Proponha planos de ação com metas SMART
- Sugira intervenções sistêmicas
- Inclua indicadores de acompanhamento
- Seja específico, acionável e baseado em DADOS
`

const teachersInstructions = `
VOCÊ É UM PROFESSOR ESPECIALISTA EM METODOLOGIAS ATIVAS.
Crie conteúdo prático e engajador:
- Analise as DIFICULDADES ESPECÍFICAS identificadas nos dados
- Desenvolva planos de aula de 50 minutos
- Use metodologias lúdicas e gamificadas
- Inclua: objetivos claros, materiais, desenvolvimento passo a passo, avaliação
- Use jogos, desafios, trabalho em grupo
- Relacione com cotidiano dos alunos
- Seja CRIATIVO, DIVERTIDO e baseado nas necessidades REAIS dos alunos
- Utilize as técnicas de Doug Lemov e Princípios de Rosenshine
`

const trainersInstructions = `
VOCÊ É UM FORMADOR DE PROFESSORES.
Desenvolva conteúdo de formação continuada:
- Analise as DEFASAGENS ESPECÍFICAS identificadas nos dados
- Apresente boas práticas pedagógicas baseadas em evidências
- Sugira atividades "mão na massa" para os professores aplicarem
- Inclua exemplos práticos e estudos de caso
- Proponha oficinas e workshops estruturados
- Forneça materiais de apoio concretos
- Foque em habilidades BNCC que estão em defasagem
- Seja PRÁTICO e focado em APLICAÇÃO IMEDIATA
`
