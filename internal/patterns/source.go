package patterns

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"

	"shelf/internal/logging"
	"shelf/internal/rules"
	"shelf/internal/scanner"
	"shelf/internal/store"
)

const (
	// minOccurrences is how often a destination must have been chosen for an
	// extension before it is suggested at all.
	minOccurrences = 3
	// recentEventLimit bounds how much history the similarity pass reads.
	recentEventLimit = 25
	// confidenceFloor is the minimum blended score worth surfacing.
	confidenceFloor = 0.55

	frequencyWeight  = 0.7
	similarityWeight = 0.3

	retention     = 180 * 24 * time.Hour
	pruneInterval = 64
)

// Source implements the scan pipeline's learned-pattern step on top of the
// store's pattern_events history. Safe for concurrent use.
type Source struct {
	store     *store.Store
	logger    *slog.Logger
	remembers atomic.Int64
}

// NewSource builds a pattern source backed by the given store.
func NewSource(st *store.Store, logger *slog.Logger) *Source {
	return &Source{
		store:  st,
		logger: logging.NewComponentLogger(logger, "patterns"),
	}
}

// Suggest scores each destination the user has organized this extension
// into: the destination's share of the extension's history, blended with the
// best name similarity among recent files that went there. The top-scoring
// destination is returned when it was used often enough and the blended
// score clears the floor.
func (s *Source) Suggest(ctx context.Context, file rules.FileInfo) (scanner.Suggestion, bool) {
	extension := strings.ToLower(strings.TrimSpace(file.Extension))
	if extension == "" {
		return scanner.Suggestion{}, false
	}

	counts, err := s.store.DestinationCounts(ctx, extension)
	if err != nil {
		s.logger.Debug("pattern history unavailable", logging.Error(err))
		return scanner.Suggestion{}, false
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	if total < minOccurrences {
		return scanner.Suggestion{}, false
	}

	recent, err := s.store.PatternEvents(ctx, extension, recentEventLimit)
	if err != nil {
		s.logger.Debug("pattern history unavailable", logging.Error(err))
		return scanner.Suggestion{}, false
	}
	namesByDestination := make(map[string][]string, len(counts))
	for _, event := range recent {
		namesByDestination[event.Destination] = append(namesByDestination[event.Destination], event.Name)
	}

	stem := nameStem(file.Name)
	best := scanner.Suggestion{}
	for destination, count := range counts {
		if count < minOccurrences {
			continue
		}
		score := frequencyWeight * (float64(count) / float64(total))
		score += similarityWeight * bestSimilarity(stem, namesByDestination[destination])
		if score > best.Confidence || (score == best.Confidence && destination < best.Destination) {
			best = scanner.Suggestion{Destination: destination, Confidence: score}
		}
	}
	if best.Destination == "" || best.Confidence < confidenceFloor {
		return scanner.Suggestion{}, false
	}
	return best, true
}

// Remember records one completed organize decision so future files with the
// same extension can follow it. Old events are pruned periodically so stale
// habits age out.
func (s *Source) Remember(ctx context.Context, record *store.FileRecord, destination string) error {
	event := &store.PatternEvent{
		Extension:   strings.ToLower(strings.TrimSpace(record.Extension)),
		Name:        record.Name,
		Destination: destination,
		Source:      record.SuggestionSource,
	}
	if err := s.store.RecordPatternEvent(ctx, event); err != nil {
		return err
	}
	if s.remembers.Add(1)%pruneInterval == 0 {
		cutoff := time.Now().UTC().Add(-retention)
		if pruned, err := s.store.PrunePatternEvents(ctx, cutoff); err != nil {
			s.logger.Warn("cannot prune pattern history", logging.Error(err))
		} else if pruned > 0 {
			s.logger.Debug("pruned pattern history", logging.Int64("events", pruned))
		}
	}
	return nil
}

// bestSimilarity returns the highest normalized similarity between the stem
// and the stems of past names. Zero when there is no history to compare.
func bestSimilarity(stem string, names []string) float64 {
	best := 0.0
	for _, name := range names {
		if sim := similarity(stem, nameStem(name)); sim > best {
			best = sim
		}
	}
	return best
}

// similarity is 1 minus the normalized Levenshtein distance over runes.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// nameStem lowercases a file name and strips its extension so date stamps
// and counters dominate the comparison instead of the shared suffix.
func nameStem(name string) string {
	lowered := strings.ToLower(name)
	return strings.TrimSuffix(lowered, filepath.Ext(lowered))
}

// TopDestinations reports the extension's destinations by descending use,
// for diagnostics.
func (s *Source) TopDestinations(ctx context.Context, extension string) ([]DestinationCount, error) {
	counts, err := s.store.DestinationCounts(ctx, strings.ToLower(strings.TrimSpace(extension)))
	if err != nil {
		return nil, err
	}
	ranked := make([]DestinationCount, 0, len(counts))
	for destination, count := range counts {
		ranked = append(ranked, DestinationCount{Destination: destination, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Destination < ranked[j].Destination
	})
	return ranked, nil
}

// DestinationCount pairs a destination with how often it was chosen.
type DestinationCount struct {
	Destination string
	Count       int
}
