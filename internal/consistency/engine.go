package consistency

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/reelforge/reelforge/internal/providers"
	"github.com/reelforge/reelforge/pkg/types"
)

// DefaultThreshold is the consistency score below which a frame counts as
// inconsistent.
const DefaultThreshold = 70

// Store captures the storage operations the engine needs.
type Store interface {
	GetFrame(ctx context.Context, frameID string) (*types.Frame, error)
	ListFrames(ctx context.Context, projectID string) ([]*types.Frame, error)
	UpdateFrame(ctx context.Context, frameID string, updater func(*types.Frame) (*types.Frame, error)) (*types.Frame, error)
}

// Engine binds character identities to frames, enforces the consistency
// lock, and aggregates consistency reporting. The similarity judgement
// itself belongs to the external analyzer; the engine selects what to
// compare and rolls up the outliers.
type Engine struct {
	store     Store
	analyzer  providers.ConsistencyAnalyzer
	threshold int
}

// New returns an engine. A threshold of 0 selects DefaultThreshold.
func New(store Store, analyzer providers.ConsistencyAnalyzer, threshold int) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{store: store, analyzer: analyzer, threshold: threshold}
}

// BindCharacter attaches a character library reference and optional
// appearance descriptor to a frame. Locked frames reject the mutation.
func (e *Engine) BindCharacter(ctx context.Context, frameID, characterLibraryID string, appearance *string) (*types.Frame, error) {
	if strings.TrimSpace(characterLibraryID) == "" {
		return nil, &types.ValidationError{Field: "characterLibraryId", Reason: "must not be empty"}
	}

	return e.store.UpdateFrame(ctx, frameID, func(f *types.Frame) (*types.Frame, error) {
		if f.IsConsistencyLocked {
			return nil, lockedErr(frameID)
		}
		f.CharacterLibraryID = &characterLibraryID
		f.CharacterAppearance = appearance
		return f, nil
	})
}

// UpdateConsistencyScore records a score in [0,100] with optional notes.
// Locked frames reject the mutation.
func (e *Engine) UpdateConsistencyScore(ctx context.Context, frameID string, score int, notes *string) (*types.Frame, error) {
	if score < 0 || score > 100 {
		return nil, &types.ValidationError{Field: "score", Reason: fmt.Sprintf("%d outside [0,100]", score)}
	}

	return e.store.UpdateFrame(ctx, frameID, func(f *types.Frame) (*types.Frame, error) {
		if f.IsConsistencyLocked {
			return nil, lockedErr(frameID)
		}
		f.ConsistencyScore = &score
		f.ConsistencyNotes = notes
		return f, nil
	})
}

// Lock sets the consistency lock. Locking an already-locked frame is a state
// conflict, same as every other mutation against a locked frame.
func (e *Engine) Lock(ctx context.Context, frameID string) (*types.Frame, error) {
	return e.store.UpdateFrame(ctx, frameID, func(f *types.Frame) (*types.Frame, error) {
		if f.IsConsistencyLocked {
			return nil, lockedErr(frameID)
		}
		f.IsConsistencyLocked = true
		return f, nil
	})
}

// Unlock clears the consistency lock. Always permitted.
func (e *Engine) Unlock(ctx context.Context, frameID string) (*types.Frame, error) {
	return e.store.UpdateFrame(ctx, frameID, func(f *types.Frame) (*types.Frame, error) {
		f.IsConsistencyLocked = false
		return f, nil
	})
}

// ClearBinding resets every character binding field including the lock. This
// is the escape hatch and is always permitted.
func (e *Engine) ClearBinding(ctx context.Context, frameID string) (*types.Frame, error) {
	return e.store.UpdateFrame(ctx, frameID, func(f *types.Frame) (*types.Frame, error) {
		f.CharacterLibraryID = nil
		f.CharacterAppearance = nil
		f.ConsistencyScore = nil
		f.ConsistencyNotes = nil
		f.IsConsistencyLocked = false
		return f, nil
	})
}

// Report aggregates consistency state over every frame in a project in a
// single pass. The average covers only frames with a character bound and is
// 0 when there are none; a frame is inconsistent when it carries a score
// below the threshold.
func (e *Engine) Report(ctx context.Context, projectID string) (*types.ConsistencyReport, error) {
	frames, err := e.store.ListFrames(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &types.ConsistencyReport{
		TotalFrames:        len(frames),
		CharacterBreakdown: []types.CharacterConsistency{},
	}

	type bucket struct {
		count int
		sum   int
	}
	perCharacter := make(map[string]*bucket)
	scoreSum := 0
	scoredFrames := 0

	for _, f := range frames {
		if f.IsConsistencyLocked {
			report.LockedFrames++
		}
		// A low score marks the frame inconsistent whether or not a
		// character is bound; the average only covers bound frames.
		if f.ConsistencyScore != nil && *f.ConsistencyScore < e.threshold {
			report.InconsistentFrames++
		}
		if f.CharacterLibraryID == nil {
			continue
		}
		report.FramesWithCharacters++

		b, ok := perCharacter[*f.CharacterLibraryID]
		if !ok {
			b = &bucket{}
			perCharacter[*f.CharacterLibraryID] = b
		}
		b.count++

		if f.ConsistencyScore != nil {
			scoreSum += *f.ConsistencyScore
			scoredFrames++
			b.sum += *f.ConsistencyScore
		}
	}

	if scoredFrames > 0 {
		report.AverageConsistencyScore = int(math.Round(float64(scoreSum) / float64(scoredFrames)))
	}

	characters := make([]string, 0, len(perCharacter))
	for id := range perCharacter {
		characters = append(characters, id)
	}
	sort.Strings(characters)
	for _, id := range characters {
		b := perCharacter[id]
		avg := 0.0
		if b.count > 0 {
			avg = float64(b.sum) / float64(b.count)
		}
		report.CharacterBreakdown = append(report.CharacterBreakdown, types.CharacterConsistency{
			CharacterLibraryID: id,
			FrameCount:         b.count,
			AverageScore:       avg,
		})
	}
	return report, nil
}

// FrameComparison is one analyzer judgement against the reference frame.
type FrameComparison struct {
	FrameID   string                    `json:"frame_id"`
	Judgement types.SimilarityJudgement `json:"judgement"`
}

// Analysis is the aggregated result of comparing a character's frames.
type Analysis struct {
	CharacterName    string            `json:"character_name"`
	ReferenceFrameID string            `json:"reference_frame_id"`
	Comparisons      []FrameComparison `json:"comparisons"`
	OutlierFrameIDs  []string          `json:"outlier_frame_ids"`
	AverageScore     float64           `json:"average_score"`
}

// AnalyzeConsistency compares every supplied frame's appearance against the
// first frame's (the reference) and flags outliers whose similarity score
// falls below the threshold. The comparison itself is the external
// analyzer's judgement.
func (e *Engine) AnalyzeConsistency(ctx context.Context, frames []*types.Frame, characterName string) (*Analysis, error) {
	if len(frames) < 2 {
		return nil, &types.ValidationError{Field: "frames", Reason: "at least two frames required for comparison"}
	}

	reference := frames[0]
	analysis := &Analysis{
		CharacterName:    characterName,
		ReferenceFrameID: reference.FrameID,
	}
	refAppearance := descriptorFromFrame(reference)

	total := 0.0
	for _, f := range frames[1:] {
		judgement, err := e.CompareAppearances(ctx, refAppearance, descriptorFromFrame(f),
			fmt.Sprintf("character %s across storyboard frames", characterName))
		if err != nil {
			return nil, err
		}
		analysis.Comparisons = append(analysis.Comparisons, FrameComparison{
			FrameID:   f.FrameID,
			Judgement: *judgement,
		})
		total += judgement.Score
		if judgement.Score < float64(e.threshold) {
			analysis.OutlierFrameIDs = append(analysis.OutlierFrameIDs, f.FrameID)
		}
	}
	analysis.AverageScore = total / float64(len(analysis.Comparisons))
	return analysis, nil
}

// CompareAppearances hands two structured appearances to the external
// analyzer and returns its judgement.
func (e *Engine) CompareAppearances(ctx context.Context, a, b types.AppearanceDescriptor, comparisonContext string) (*types.SimilarityJudgement, error) {
	judgement, err := e.analyzer.CompareAppearances(ctx, a, b, comparisonContext)
	if err != nil {
		return nil, &types.UpstreamServiceError{Service: providers.ServiceAnalyzer, Err: err}
	}
	return judgement, nil
}

// descriptorFromFrame decodes a frame's stored appearance. Appearances are
// stored as descriptor JSON; plain text falls back to the clothing field so
// legacy free-text bindings still compare.
func descriptorFromFrame(f *types.Frame) types.AppearanceDescriptor {
	if f.CharacterAppearance == nil {
		return types.AppearanceDescriptor{}
	}
	var d types.AppearanceDescriptor
	if err := json.Unmarshal([]byte(*f.CharacterAppearance), &d); err == nil {
		return d
	}
	return types.AppearanceDescriptor{Clothing: *f.CharacterAppearance}
}

func lockedErr(frameID string) error {
	return &types.StateConflictError{Reason: fmt.Sprintf("frame %s is consistency-locked", frameID)}
}
