package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bull/campaign-scribe/internal/world"
)

// Event is one extracted world-state change: which entity, what category,
// and the attribute delta to merge.
type Event struct {
	Entity     string         `json:"entity"`
	Category   world.Category `json:"category"`
	Attributes map[string]any `json:"attributes"`
	Note       string         `json:"note,omitempty"` // model's justification, kept for review
}

// Summary is the artifact produced for one processed transcript. Immutable
// after creation; saved independently of the world state.
type Summary struct {
	TranscriptID string    `json:"transcript_id"`
	Events       []Event   `json:"events"`
	Recap        string    `json:"recap"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// marshalSummary renders the summary artifact for disk.
func marshalSummary(s *Summary) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return data, nil
}

// chunkResult is the JSON document the extraction prompt asks the model for.
type chunkResult struct {
	Summary string `json:"summary"`
	Events  []struct {
		Entity     string         `json:"entity"`
		Category   string         `json:"category"`
		Attributes map[string]any `json:"attributes"`
		Note       string         `json:"note"`
	} `json:"events"`
}

// parseChunkResult decodes and validates one extraction response into typed
// events. Untyped model output never reaches the merge: every violation is
// an ErrExtractionParse naming the transcript, chunk, and offending field.
func parseChunkResult(transcriptID string, chunkIndex int, raw string) (string, []Event, error) {
	fail := func(format string, args ...any) (string, []Event, error) {
		detail := fmt.Sprintf(format, args...)
		return "", nil, fmt.Errorf("%w: transcript %s chunk %d: %s",
			ErrExtractionParse, transcriptID, chunkIndex, detail)
	}

	var result chunkResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fail("invalid JSON: %v", err)
	}

	events := make([]Event, 0, len(result.Events))
	for i, re := range result.Events {
		if re.Entity == "" {
			return fail("events[%d].entity is empty", i)
		}
		cat, err := world.ParseCategory(re.Category)
		if err != nil {
			return fail("events[%d].category: %v", i, err)
		}
		if len(re.Attributes) == 0 {
			return fail("events[%d].attributes is empty", i)
		}
		for attr, v := range re.Attributes {
			if !world.ValidAttributeValue(v) {
				return fail("events[%d].attributes[%q] has unsupported type %T", i, attr, v)
			}
		}
		events = append(events, Event{
			Entity:     re.Entity,
			Category:   cat,
			Attributes: re.Attributes,
			Note:       re.Note,
		})
	}

	return result.Summary, events, nil
}
