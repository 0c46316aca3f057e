package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/provenance"
	"github.com/Harshitk-cp/condensate/internal/store"
	"github.com/Harshitk-cp/condensate/internal/workerpool"
)

const (
	StrategyDeterministic = "deterministic"
	StrategyLLM           = "llm"
	// StrategyLLMFallback means the language model produced nothing and the
	// deterministic entities were used instead.
	StrategyLLMFallback = "llm_fallback"

	condenseJobName   = "condense"
	categoryNER       = "ner"
	categoryAdmission = "admission"
)

var tracer = otel.Tracer("condensate.service")

// CondenseResult summarizes one condensation batch.
type CondenseResult struct {
	BatchID      uuid.UUID   `json:"batch_id"`
	JobID        uuid.UUID   `json:"job_id"`
	Strategy     string      `json:"strategy"`
	EntityCount  int         `json:"entity_count"`
	EdgeCount    int         `json:"edge_count"`
	Admitted     int         `json:"admitted"`
	Pending      int         `json:"pending"`
	Rejected     int         `json:"rejected"`
	Merged       int         `json:"merged"`
	Skipped      int         `json:"skipped"`
	Failed       int         `json:"failed"`
	Policies     int         `json:"policies"`
	SavingsPct   int         `json:"savings_pct"`
	Summary      string      `json:"summary"`
	AssertionIDs []uuid.UUID `json:"assertion_ids"`
}

// CondenserDeps wires a Condenser. LLM is nil when language-model extraction
// is disabled.
type CondenserDeps struct {
	Pool          *workerpool.Pool
	Extractor     domain.EntityExtractor
	Lexical       domain.LexicalFilter
	LLM           domain.LanguageModelExtractor
	Deterministic *DeterministicCondenser
	Resolver      *Resolver
	Edges         *EdgeSynthesizer
	Graph         *CognitiveGraphService
	Admitter      *Admitter
	Assertions    domain.AssertionStore
	Facts         domain.FactWriter
	Sink          domain.ObservabilitySink
}

// Condenser runs the condensation pipeline over a batch of episodic items.
// Every stage completes before the next begins.
type Condenser struct {
	pool       *workerpool.Pool
	extractor  domain.EntityExtractor
	lexical    domain.LexicalFilter
	llm        domain.LanguageModelExtractor
	det        *DeterministicCondenser
	resolver   *Resolver
	edges      *EdgeSynthesizer
	graph      *CognitiveGraphService
	admitter   *Admitter
	assertions domain.AssertionStore
	facts      domain.FactWriter
	sink       domain.ObservabilitySink
	logger     *zap.Logger
}

func NewCondenser(d CondenserDeps, logger *zap.Logger) *Condenser {
	det := d.Deterministic
	if det == nil {
		det = NewDeterministicCondenser(d.Lexical)
	}
	return &Condenser{
		pool:       d.Pool,
		extractor:  d.Extractor,
		lexical:    d.Lexical,
		llm:        d.LLM,
		det:        det,
		resolver:   d.Resolver,
		edges:      d.Edges,
		graph:      d.Graph,
		admitter:   d.Admitter,
		assertions: d.Assertions,
		facts:      d.Facts,
		sink:       d.Sink,
		logger:     logger,
	}
}

// Condense processes items, which must all belong to projectID. Failures of
// single items or facts are logged and skipped; canonicalization, edge
// synthesis and persistence failures abort the batch with a *StageError.
func (c *Condenser) Condense(ctx context.Context, projectID uuid.UUID, items []domain.EpisodicItem) (result *CondenseResult, err error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, it := range items {
		if it.ProjectID != projectID {
			return nil, ErrProjectMismatch
		}
	}

	job := domain.StartJob(c.sink, condenseJobName)
	ctx, span := tracer.Start(ctx, "condense",
		trace.WithAttributes(
			attribute.String("project_id", projectID.String()),
			attribute.Int("items", len(items)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		job.Finish(err)
	}()

	started := time.Now()
	result = &CondenseResult{BatchID: uuid.New(), JobID: job.ID()}

	// 1. Extraction fan-out.
	candidates := c.extractEntities(ctx, items)

	// 2. Strategy.
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	det := c.det.Process(strings.Join(texts, "\n"))
	result.Summary = det.Condensed
	result.SavingsPct = det.SavingsPct

	var bundles []domain.Bundle
	switch {
	case c.llm == nil:
		result.Strategy = StrategyDeterministic
		candidates = append(candidates, det.Entities...)
	default:
		bundles = c.runLLM(ctx, items)
		if len(bundles) == 0 {
			result.Strategy = StrategyLLMFallback
			candidates = append(candidates, det.Entities...)
		} else {
			result.Strategy = StrategyLLM
			for _, b := range bundles {
				candidates = append(candidates, b.Entities...)
			}
		}
	}

	// 3. Canonicalization.
	resolution, err := c.canonicalize(ctx, projectID, candidates)
	if err != nil {
		return nil, &StageError{Stage: StageCanonicalization, Err: err}
	}
	entityIDs := resolution.EntityIDs()
	result.EntityCount = len(entityIDs)

	// 4. Edge synthesis.
	now := time.Now().UTC()
	prov := domain.BatchProvenance{BatchTS: now.Format(time.RFC3339Nano), ItemIDs: itemIDStrings(items)}
	result.EdgeCount, err = c.synthesize(ctx, projectID, entityIDs, prov)
	if err != nil {
		return nil, &StageError{Stage: StageEdgeSynthesis, Err: err}
	}

	// 5. Fact admission.
	facts := []CandidateFact{{
		Subject:    domain.LiteralRef(SummarySubject),
		Predicate:  SummaryPredicate,
		Object:     domain.LiteralRef(det.Condensed),
		Polarity:   1,
		Confidence: 1.0,
		Method:     domain.MethodDeterministic,
	}}
	llmFacts, llmPolicies := Consolidate(bundles, resolution)
	facts = append(facts, llmFacts...)

	inputs := provenance.HashInputs(texts)
	admitted, policies, activated := c.admit(ctx, projectID, facts, llmPolicies, inputs, now, result)

	// 6. Persist.
	if err := c.persist(ctx, admitted, policies); err != nil {
		return nil, &StageError{Stage: StagePersistence, Err: err}
	}
	for _, a := range admitted {
		if a.ID == uuid.Nil {
			result.Skipped++
			continue
		}
		result.AssertionIDs = append(result.AssertionIDs, a.ID)
		activated = append(activated, a.ID)
		switch a.Status {
		case domain.StatusRejected:
			result.Rejected++
		case domain.StatusPendingReview:
			result.Pending++
		default:
			result.Admitted++
		}
	}
	for _, p := range policies {
		if p.ID != uuid.Nil {
			result.Policies++
		}
	}

	// Co-activation of everything this batch produced.
	if _, err := c.graph.HebbianUpdate(ctx, projectID, append(activated, entityIDs...)); err != nil {
		c.logger.Warn("co-activation failed", zap.String("batch_id", result.BatchID.String()), zap.Error(err))
	}

	c.logger.Info("condensation complete",
		zap.String("batch_id", result.BatchID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("strategy", result.Strategy),
		zap.Int("items", len(items)),
		zap.Int("entities", result.EntityCount),
		zap.Int("edges", result.EdgeCount),
		zap.Int("admitted", result.Admitted),
		zap.Int("pending", result.Pending),
		zap.Int("rejected", result.Rejected),
		zap.Int("merged", result.Merged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(started)))
	return result, nil
}

func (c *Condenser) extractEntities(ctx context.Context, items []domain.EpisodicItem) []domain.CandidateEntity {
	ctx, span := tracer.Start(ctx, "condense.extract")
	defer span.End()

	handles := make([]*workerpool.Handle, len(items))
	for i, item := range items {
		h, err := c.pool.Submit(ctx, categoryNER, func(ctx context.Context) (any, error) {
			return c.extractor.Extract(ctx, item.Text)
		})
		if err != nil {
			c.logger.Warn("entity extraction not scheduled", zap.String("item_id", item.ID.String()), zap.Error(err))
			continue
		}
		handles[i] = h
	}

	minLen := c.lexical.MinEntityLength()
	var out []domain.CandidateEntity
	for i, h := range handles {
		if h == nil {
			continue
		}
		spans, err := workerpool.Await[[]domain.NERSpan](ctx, h)
		if err != nil {
			c.logger.Warn("entity extraction failed", zap.String("item_id", items[i].ID.String()), zap.Error(err))
			continue
		}
		for _, s := range spans {
			name := strings.TrimSpace(s.Text)
			if len([]rune(name)) < minLen || c.lexical.IsStopword(name) {
				continue
			}
			out = append(out, domain.CandidateEntity{
				Name:       name,
				Type:       domain.NormalizeEntityType(s.Label),
				Aliases:    []string{},
				Confidence: s.Score,
			})
		}
	}
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out
}

func (c *Condenser) runLLM(ctx context.Context, items []domain.EpisodicItem) []domain.Bundle {
	ctx, span := tracer.Start(ctx, "condense.llm", trace.WithAttributes(attribute.String("model", c.llm.Model())))
	defer span.End()

	bundles, err := c.llm.Extract(ctx, items)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("language model extraction failed, continuing without bundles", zap.Error(err))
		return nil
	}
	span.SetAttributes(attribute.Int("bundles", len(bundles)))
	return bundles
}

func (c *Condenser) canonicalize(ctx context.Context, projectID uuid.UUID, candidates []domain.CandidateEntity) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "condense.canonicalize", trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	res, err := c.resolver.Resolve(ctx, projectID, candidates)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (c *Condenser) synthesize(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID, prov domain.BatchProvenance) (int, error) {
	ctx, span := tracer.Start(ctx, "condense.edges", trace.WithAttributes(attribute.Int("entities", len(ids))))
	defer span.End()

	n, err := c.edges.Synthesize(ctx, projectID, ids, prov)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return n, nil
}

type admission struct {
	existing  *domain.Assertion
	assertion *domain.Assertion
}

// admit schedules one admission task per new fact and per policy, then
// collects them. Duplicates of deterministic facts are skipped; duplicates
// of language-model facts are merged into the stored assertion. It returns
// the assertions and policies still to persist plus the ids of merged
// assertions.
func (c *Condenser) admit(ctx context.Context, projectID uuid.UUID, facts []CandidateFact, extracted []domain.ExtractedPolicy,
	inputs []string, at time.Time, result *CondenseResult) ([]*domain.Assertion, []*domain.Policy, []uuid.UUID) {

	ctx, span := tracer.Start(ctx, "condense.admit", trace.WithAttributes(attribute.Int("facts", len(facts))))
	defer span.End()

	var handles []*workerpool.Handle
	inBatch := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		k := factKey(f)
		if _, dup := inBatch[k]; dup {
			result.Skipped++
			continue
		}
		inBatch[k] = struct{}{}

		existing, err := c.assertions.FindByKey(ctx, f.Key(projectID))
		switch {
		case err == nil:
			if f.Method != domain.MethodLLM {
				result.Skipped++
				continue
			}
		case errors.Is(err, store.ErrNotFound):
			existing = nil
		default:
			c.logger.Warn("duplicate check failed", zap.String("fact", f.Render()), zap.Error(err))
			result.Failed++
			continue
		}

		h, err := c.pool.Submit(ctx, categoryAdmission, func(context.Context) (any, error) {
			a, _, err := c.admitter.Admit(projectID, f, inputs, at)
			if err != nil {
				return nil, err
			}
			return &admission{existing: existing, assertion: a}, nil
		})
		if err != nil {
			c.logger.Warn("fact admission not scheduled", zap.Error(err))
			result.Failed++
			continue
		}
		handles = append(handles, h)
	}

	var policyHandles []*workerpool.Handle
	for _, p := range extracted {
		h, err := c.pool.Submit(ctx, categoryAdmission, func(context.Context) (any, error) {
			return c.admitter.AdmitPolicy(projectID, p, inputs, at)
		})
		if err != nil {
			c.logger.Warn("policy admission not scheduled", zap.Error(err))
			result.Failed++
			continue
		}
		policyHandles = append(policyHandles, h)
	}

	var assertions []*domain.Assertion
	var merged []uuid.UUID
	for _, h := range handles {
		adm, err := workerpool.Await[*admission](ctx, h)
		if err != nil || adm == nil {
			c.logger.Warn("fact admission failed", zap.Error(err))
			result.Failed++
			continue
		}
		if adm.existing == nil {
			assertions = append(assertions, adm.assertion)
			continue
		}

		a := adm.assertion
		err = c.assertions.Merge(ctx, adm.existing.ID, domain.AssertionMerge{
			Confidence:       a.Confidence,
			InstructionScore: a.InstructionScore,
			SafetyScore:      a.SafetyScore,
			Provenance:       a.Provenance,
			Evidence:         a.Evidence,
		})
		if err != nil {
			c.logger.Warn("assertion merge failed", zap.String("assertion_id", adm.existing.ID.String()), zap.Error(err))
			result.Failed++
			continue
		}
		result.Merged++
		merged = append(merged, adm.existing.ID)
	}

	var policies []*domain.Policy
	for _, h := range policyHandles {
		p, err := workerpool.Await[*domain.Policy](ctx, h)
		if err != nil || p == nil {
			c.logger.Warn("policy admission failed", zap.Error(err))
			result.Failed++
			continue
		}
		policies = append(policies, p)
	}

	return assertions, policies, merged
}

func (c *Condenser) persist(ctx context.Context, assertions []*domain.Assertion, policies []*domain.Policy) error {
	ctx, span := tracer.Start(ctx, "condense.persist",
		trace.WithAttributes(attribute.Int("assertions", len(assertions)), attribute.Int("policies", len(policies))))
	defer span.End()

	if err := c.facts.PersistFacts(ctx, assertions, policies); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("persist facts: %w", err)
	}
	return nil
}

func factKey(f CandidateFact) string {
	return f.Subject.Key() + "\x00" + f.Predicate + "\x00" + f.Object.Key() + "\x00" + strconv.Itoa(f.Polarity)
}

func itemIDStrings(items []domain.EpisodicItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID.String()
	}
	return ids
}
