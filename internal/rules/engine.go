package rules

import (
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"

	"shelf/internal/logging"
)

// foldName normalizes a file name or condition value for case-insensitive
// comparison using Unicode case folding, which handles characters that
// simple lowercasing misses (ß folds to ss, for example).
func foldName(value string) string {
	return cases.Fold().String(value)
}

// FileInfo carries the file attributes conditions match against.
type FileInfo struct {
	Name       string
	Extension  string
	SizeBytes  int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Match is a successful evaluation result.
type Match struct {
	Rule        Rule
	Destination string
}

// Engine evaluates ordered rule sets against file attributes. Evaluation is
// pure with respect to its inputs and safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine constructs an engine. A nil logger disables diagnostics.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logging.NewComponentLogger(logger, "rules"),
		now:    time.Now,
	}
}

// Evaluate walks enabled rules in their total order and returns the first
// rule whose conditions all hold and whose exclusions all fail. Disabled
// rules and rules with an empty condition list never match.
func (e *Engine) Evaluate(file FileInfo, ruleset []Rule) (Match, bool) {
	ordered := make([]Rule, len(ruleset))
	copy(ordered, ruleset)
	Sort(ordered)

	now := e.now()
	for _, rule := range ordered {
		if !rule.Enabled {
			continue
		}
		if len(rule.Conditions) == 0 {
			continue
		}
		matched := true
		for _, condition := range rule.Conditions {
			if !e.matchCondition(condition, file, now) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		excluded := false
		for _, exclusion := range rule.Exclusions {
			if e.matchCondition(exclusion, file, now) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		return Match{Rule: rule, Destination: rule.Destination}, true
	}
	return Match{}, false
}

func (e *Engine) matchCondition(condition Condition, file FileInfo, now time.Time) bool {
	switch condition.Kind {
	case KindExtensionEquals:
		value := normalizeExtension(condition.Value)
		if value == "" {
			return false
		}
		return strings.EqualFold(value, normalizeExtension(file.Extension))
	case KindNameStartsWith:
		value := foldName(strings.TrimSpace(condition.Value))
		if value == "" {
			return false
		}
		return strings.HasPrefix(foldName(file.Name), value)
	case KindNameContains:
		value := foldName(strings.TrimSpace(condition.Value))
		if value == "" {
			return false
		}
		return strings.Contains(foldName(file.Name), value)
	case KindNameEndsWith:
		value := foldName(strings.TrimSpace(condition.Value))
		if value == "" {
			return false
		}
		return strings.HasSuffix(foldName(file.Name), value)
	case KindNameMatches:
		pattern := foldName(strings.TrimSpace(condition.Value))
		if pattern == "" {
			return false
		}
		matched, err := doublestar.Match(pattern, foldName(file.Name))
		if err != nil {
			e.logger.Debug("glob condition failed to compile",
				logging.String("pattern", condition.Value),
				logging.Error(err))
			return false
		}
		return matched
	case KindSizeLargerThan:
		threshold, err := ParseSize(condition.Value)
		if err != nil {
			e.logger.Debug("size condition failed to parse",
				logging.String("value", condition.Value),
				logging.Error(err))
			return false
		}
		return file.SizeBytes > threshold
	case KindSizeSmallerThan:
		threshold, err := ParseSize(condition.Value)
		if err != nil {
			e.logger.Debug("size condition failed to parse",
				logging.String("value", condition.Value),
				logging.Error(err))
			return false
		}
		return file.SizeBytes < threshold
	case KindDateWithin:
		window, err := ParseWindow(condition.Value)
		if err != nil {
			e.logger.Debug("date condition failed to parse",
				logging.String("value", condition.Value),
				logging.Error(err))
			return false
		}
		if file.ModifiedAt.IsZero() {
			return false
		}
		return now.Sub(file.ModifiedAt) <= window
	case KindAll:
		if len(condition.All) == 0 {
			return false
		}
		for _, child := range condition.All {
			if !e.matchCondition(child, file, now) {
				return false
			}
		}
		return true
	case KindAny:
		for _, child := range condition.Any {
			if e.matchCondition(child, file, now) {
				return true
			}
		}
		return false
	case KindNot:
		if condition.Not == nil {
			return false
		}
		return !e.matchCondition(*condition.Not, file, now)
	default:
		// Unknown kinds come from newer or older schema versions; treat them
		// as non-matching instead of failing the whole evaluation.
		e.logger.Debug("ignoring unknown condition kind",
			logging.String("kind", string(condition.Kind)))
		return false
	}
}

func normalizeExtension(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), ".")
}
