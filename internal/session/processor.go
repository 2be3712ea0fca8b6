// Package session turns raw transcripts into structured world-state updates.
// One transcript moves through Received -> Analyzed -> Extracted -> Merged ->
// Done; a failure at any stage leaves the world state exactly as it was.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/campaign-scribe/internal/chunker"
	"github.com/bull/campaign-scribe/internal/rag"
	"github.com/bull/campaign-scribe/internal/world"
)

// Stage names the steps of the per-transcript state machine, for logging.
type Stage string

const (
	StageReceived  Stage = "received"
	StageAnalyzed  Stage = "analyzed"
	StageExtracted Stage = "extracted"
	StageMerged    Stage = "merged"
	StageDone      Stage = "done"
)

const (
	// DefaultChunkChars keeps each extraction call well inside the model's
	// context window.
	DefaultChunkChars = 12000

	// transcriptOverlap carries a little continuity across chunk borders so
	// an event spanning the cut is seen by at least one call.
	transcriptOverlap = 400

	// ruleQueryChars bounds the retrieval query derived from a transcript
	// chunk. Chunks can be larger than the embedding input limit; the
	// opening of the chunk is enough to find the relevant rules.
	ruleQueryChars = 2000
)

const extractSystemPrompt = `You are a scribe for a tabletop RPG session.
For the given transcript excerpt, respond with a JSON object:
{"summary": "concise summary of what happened",
 "events": [{"entity": "name", "category": "npc|location|faction|flag",
             "attributes": {"attr": value}, "note": "one-line justification"}]}
Report only NEW facts or CHANGES to the world. Attribute values must be
strings, numbers, or booleans. Return an empty events array if nothing changed.`

const recapSystemPrompt = "You are a concise narrator. Combine the ordered " +
	"excerpt summaries into one coherent session recap of at most 200 words, " +
	"preserving chronology."

// ChatClient is the generation surface the processor needs.
// Implemented by generation.Client.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// RuleRetriever optionally supplies rule context for extraction.
// Implemented by rag.Service.
type RuleRetriever interface {
	Retrieve(ctx context.Context, question string, k int, category string) (*rag.Context, error)
}

// Processor runs the session pipeline against a world store.
type Processor struct {
	chat         ChatClient
	store        *world.Store
	rules        RuleRetriever // nil disables rule context
	summariesDir string
	chunkChars   int
	logger       *slog.Logger
	now          func() time.Time
}

// NewProcessor creates a Processor. rules may be nil; zero chunkChars selects
// the default.
func NewProcessor(chat ChatClient, store *world.Store, rules RuleRetriever, summariesDir string, chunkChars int, logger *slog.Logger) *Processor {
	if chunkChars <= 0 {
		chunkChars = DefaultChunkChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		chat:         chat,
		store:        store,
		rules:        rules,
		summariesDir: summariesDir,
		chunkChars:   chunkChars,
		logger:       logger,
		now:          time.Now,
	}
}

// Process runs one transcript through extraction and merge, returning the
// saved summary. The merge is all-or-nothing: every event is parsed and
// validated before the first upsert, and the world state file is only
// rewritten after all upserts succeed in memory.
func (p *Processor) Process(ctx context.Context, transcriptID, text string) (*Summary, error) {
	if transcriptID == "" {
		transcriptID = uuid.New().String()
	}
	p.logStage(transcriptID, StageReceived)

	split, err := chunker.New(p.chunkChars, transcriptOverlap)
	if err != nil {
		return nil, fmt.Errorf("transcript chunker: %w", err)
	}
	chunks := split.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("transcript %s is empty", transcriptID)
	}
	p.logStage(transcriptID, StageAnalyzed, "chunks", len(chunks))

	var (
		allEvents      []Event
		chunkSummaries []string
	)
	for _, ch := range chunks {
		summary, events, err := p.extractChunk(ctx, transcriptID, ch)
		if err != nil {
			return nil, err
		}
		chunkSummaries = append(chunkSummaries, summary)
		allEvents = append(allEvents, events...)
	}
	p.logStage(transcriptID, StageExtracted, "events", len(allEvents))

	updates := make([]world.Update, len(allEvents))
	for i, e := range allEvents {
		updates[i] = world.Update{
			Category:   e.Category,
			Name:       e.Entity,
			Attributes: e.Attributes,
		}
	}
	if err := p.store.ApplyAll(updates); err != nil {
		return nil, fmt.Errorf("merge transcript %s: %w", transcriptID, err)
	}
	if err := p.store.Save(); err != nil {
		return nil, fmt.Errorf("persist world state: %w", err)
	}
	p.logStage(transcriptID, StageMerged)

	summary := &Summary{
		TranscriptID: transcriptID,
		Events:       allEvents,
		Recap:        p.recap(ctx, transcriptID, chunkSummaries),
		GeneratedAt:  p.now(),
	}
	if err := p.writeSummary(summary); err != nil {
		return nil, err
	}
	p.logStage(transcriptID, StageDone)

	return summary, nil
}

// extractChunk asks the model for the summary and event list of one chunk.
func (p *Processor) extractChunk(ctx context.Context, transcriptID string, ch chunker.Chunk) (string, []Event, error) {
	var prompt strings.Builder
	if p.rules != nil {
		if ruleCtx, err := p.rules.Retrieve(ctx, ruleQuery(ch.Text), 3, "rule"); err == nil && ruleCtx.Text != "" {
			prompt.WriteString("Relevant rules for reference:\n")
			prompt.WriteString(ruleCtx.Text)
			prompt.WriteString("\n\n")
		} else if err != nil && !errors.Is(err, rag.ErrNoResults) {
			p.logger.Warn("Rule context lookup failed, extracting without it",
				"transcript", transcriptID, "chunk", ch.Index, "error", err)
		}
	}
	prompt.WriteString("Transcript excerpt:\n")
	prompt.WriteString(ch.Text)

	raw, err := p.chat.CompleteJSON(ctx, extractSystemPrompt, prompt.String())
	if err != nil {
		return "", nil, fmt.Errorf("extract transcript %s chunk %d: %w", transcriptID, ch.Index, err)
	}

	return parseChunkResult(transcriptID, ch.Index, raw)
}

// recap combines chunk summaries into one session recap. Best-effort: the
// merge is already committed, so a recap failure falls back to the raw
// chunk summaries instead of failing the transcript.
func (p *Processor) recap(ctx context.Context, transcriptID string, chunkSummaries []string) string {
	joined := numberedList(chunkSummaries)
	if len(chunkSummaries) == 1 {
		return chunkSummaries[0]
	}

	recap, err := p.chat.Complete(ctx, recapSystemPrompt, joined)
	if err != nil {
		p.logger.Warn("Recap generation failed, keeping chunk summaries",
			"transcript", transcriptID, "error", err)
		return joined
	}
	return strings.TrimSpace(recap)
}

// writeSummary persists the summary artifact; the filename ties it back to
// its transcript.
func (p *Processor) writeSummary(s *Summary) error {
	if err := os.MkdirAll(p.summariesDir, 0o755); err != nil {
		return fmt.Errorf("create summaries dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.summary.json",
		s.GeneratedAt.Format("2006-01-02"), world.Slug(s.TranscriptID))
	path := filepath.Join(p.summariesDir, name)

	data, err := marshalSummary(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	p.logger.Info("Session summary saved", "path", path, "events", len(s.Events))
	return nil
}

// logStage records a transcript's progress through the pipeline.
func (p *Processor) logStage(transcriptID string, stage Stage, args ...any) {
	fields := append([]any{"transcript", transcriptID, "stage", string(stage)}, args...)
	p.logger.Info("Transcript stage", fields...)
}

// ruleQuery derives a bounded retrieval query from a transcript chunk.
func ruleQuery(text string) string {
	runes := []rune(text)
	if len(runes) <= ruleQueryChars {
		return text
	}
	return string(runes[:ruleQueryChars])
}

func numberedList(items []string) string {
	var b strings.Builder
	for i, s := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
