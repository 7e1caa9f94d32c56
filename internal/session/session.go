// Package session holds the state of one interactive analysis session and
// runs each request through extraction, filtering, context building,
// generation and chart selection.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edusight-cli/internal/chart"
	"github.com/KaramelBytes/edusight-cli/internal/dataset"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/logging"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

// NoDataReply is returned when a question arrives before any dataset.
const NoDataReply = "⚠️ Por favor, carregue os dados SARESP primeiro na barra lateral."

// Generator produces a reply for one assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Session is not safe for concurrent use; requests are processed one at a time.
type Session struct {
	id        string
	log       *zap.Logger
	gen       Generator
	extractor *filter.Extractor
	ctxOpts   prompt.ContextOptions
	// promptLimit caps the estimated prompt tokens; 0 means no cap.
	promptLimit int

	datasets    []*dataset.Loaded
	history     []prompt.Turn
	persona     prompt.Persona
	lastFilters []string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a logger; the session ID is added as a field.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = logging.OrNop(l) } }

// WithGenerator sets the generation backend.
func WithGenerator(g Generator) Option { return func(s *Session) { s.gen = g } }

// WithExtractor replaces the default filter extractor.
func WithExtractor(e *filter.Extractor) Option {
	return func(s *Session) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithPersona sets the initial persona.
func WithPersona(p prompt.Persona) Option { return func(s *Session) { s.persona = p } }

// WithContextOptions tunes the rendered data context.
func WithContextOptions(o prompt.ContextOptions) Option { return func(s *Session) { s.ctxOpts = o } }

// WithPromptLimit trims the data context so the prompt stays under tokens.
func WithPromptLimit(tokens int) Option { return func(s *Session) { s.promptLimit = tokens } }

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		log:       zap.NewNop(),
		extractor: filter.NewExtractor(),
		persona:   prompt.Management,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("session", s.id))
	return s
}

// ID identifies the session in log lines.
func (s *Session) ID() string { return s.id }

// Load registers a table under name. A name already loaded is ignored and
// reported with ok=false; the stored table is left as it was.
func (s *Session) Load(name string, t *dataset.Table) bool {
	return s.Add(&dataset.Loaded{Name: name, Table: t})
}

// Add registers a loaded dataset, keeping the normalizer's renames for logging.
func (s *Session) Add(ds *dataset.Loaded) bool {
	if ds == nil || ds.Table == nil {
		return false
	}
	for _, have := range s.datasets {
		if have.Name == ds.Name {
			s.log.Info("dataset already loaded", zap.String("name", ds.Name))
			return false
		}
	}
	s.datasets = append(s.datasets, ds)
	renamed := make([]string, 0, len(ds.Renamed))
	for _, r := range ds.Renamed {
		renamed = append(renamed, r.From+"->"+r.To)
	}
	s.log.Info("dataset loaded",
		zap.String("name", ds.Name),
		zap.Int("rows", ds.Table.Len()),
		zap.Int("columns", ds.Table.NumColumns()),
		zap.Strings("renamed", renamed))
	return true
}

// Datasets returns the loaded datasets in load order.
func (s *Session) Datasets() []*dataset.Loaded {
	out := make([]*dataset.Loaded, len(s.datasets))
	copy(out, s.datasets)
	return out
}

// SetPersona changes the audience for later requests; history is kept.
func (s *Session) SetPersona(p prompt.Persona) { s.persona = p }

// Persona returns the current audience.
func (s *Session) Persona() prompt.Persona { return s.persona }

// History returns a copy of the conversation so far.
func (s *Session) History() []prompt.Turn {
	out := make([]prompt.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// LastFilters returns the labels applied by the most recent request, or nil
// when it ran unfiltered.
func (s *Session) LastFilters() []string { return s.lastFilters }

// Clear discards datasets, history and the last filters. The persona stays.
func (s *Session) Clear() {
	s.datasets = nil
	s.history = nil
	s.lastFilters = nil
	s.log.Info("session cleared")
}

// Suggestions returns starter questions for the current persona, using the
// first school code of the first dataset when there is one.
func (s *Session) Suggestions() []string {
	code := ""
	if len(s.datasets) > 0 {
		if c, ok := s.datasets[0].Table.Column(dataset.ColSchoolCode); ok {
			for i := 0; i < c.Len(); i++ {
				if !c.IsNull(i) {
					code = c.String(i)
					break
				}
			}
		}
	}
	return s.persona.Suggestions(code)
}

// Reply is the outcome of one request.
type Reply struct {
	Text    string
	Chart   *chart.Spec
	Filters []string
	Prompt  string
	// Err is the generation error behind a failure reply, nil otherwise.
	Err error
}

// Plan is the deterministic part of a request: everything up to the
// generation call.
type Plan struct {
	Criteria filter.Criteria
	Dataset  string
	Filters  []string
	Table    *dataset.Table
	Context  string
	Prompt   string
	Filtered bool
}

// Preview builds the prompt for text without recording it or calling the
// generator. History is used as if text were the next user turn.
func (s *Session) Preview(text string) Plan {
	history := append(s.History(), prompt.Turn{Role: prompt.RoleUser, Content: text})
	return s.plan(text, history)
}

func (s *Session) plan(text string, history []prompt.Turn) Plan {
	c := s.extractor.Extract(text)
	s.log.Debug("criteria extracted", zap.Stringer("criteria", c))

	var p Plan
	p.Criteria = c
	if m, ok := filter.ApplyFirst(s.datasets, c); ok {
		p.Filtered = true
		p.Dataset = m.Name
		p.Filters = m.Applied
		p.Table = m.Table
		p.Context = prompt.BuildFiltered(m.Table, m.Name, m.Applied, s.ctxOpts)
		s.log.Info("filters applied",
			zap.String("dataset", m.Name),
			zap.Strings("filters", m.Applied),
			zap.Int("rows", m.Table.Len()))
	} else {
		if len(s.datasets) > 0 {
			p.Dataset = s.datasets[0].Name
			p.Table = s.datasets[0].Table
		}
		p.Context = prompt.BuildOverview(s.datasets, s.ctxOpts)
	}
	in := prompt.Input{Persona: s.persona, Context: p.Context, History: history, Question: text}
	p.Prompt = prompt.Build(in)
	tokens := utils.CountTokens(p.Prompt)
	if s.promptLimit > 0 && tokens > s.promptLimit {
		keep := utils.CountTokens(p.Context) - (tokens - s.promptLimit)
		in.Context = utils.TruncateToTokenLimit(p.Context, keep)
		p.Context = in.Context
		p.Prompt = prompt.Build(in)
		s.log.Warn("data context truncated",
			zap.Int("tokens", tokens),
			zap.Int("limit", s.promptLimit))
		tokens = utils.CountTokens(p.Prompt)
	}
	s.log.Debug("prompt built", zap.Int("tokens", tokens))
	return p
}

// Ask runs one request. Generation failures become the reply text; chart
// failures leave Chart nil. Both turns are recorded either way.
func (s *Session) Ask(ctx context.Context, text string) Reply {
	s.history = append(s.history, prompt.Turn{Role: prompt.RoleUser, Content: text})
	if len(s.datasets) == 0 {
		s.record(NoDataReply)
		return Reply{Text: NoDataReply}
	}

	p := s.plan(text, s.history)
	if p.Filtered {
		s.lastFilters = p.Filters
	} else {
		s.lastFilters = nil
	}

	reply := Reply{Filters: p.Filters, Prompt: p.Prompt}
	out, err := s.generate(ctx, p.Prompt)
	if err != nil {
		s.log.Warn("generation failed", zap.Error(err))
		reply.Err = err
		out = fmt.Sprintf("❌ Erro ao processar: %v\n\nTente novamente ou reformule sua pergunta.", err)
	}
	reply.Text = out
	s.record(out)

	if chart.Requested(text) {
		spec, err := chart.Select(text, p.Table, p.Filtered)
		if err != nil {
			s.log.Warn("chart construction failed", zap.Error(err))
		} else {
			reply.Chart = spec
		}
	}
	return reply
}

func (s *Session) generate(ctx context.Context, text string) (string, error) {
	if s.gen == nil {
		return "", errors.New("no generator configured")
	}
	return s.gen.Generate(ctx, text)
}

func (s *Session) record(text string) {
	s.history = append(s.history, prompt.Turn{Role: prompt.RoleAssistant, Content: text})
}
