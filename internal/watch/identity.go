package watch

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/amaumene/prunarr/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	imdbGUIDRegex = regexp.MustCompile(`^imdb://(tt\d+)`)
	tvdbGUIDRegex = regexp.MustCompile(`^tvdb://(\d+)`)
)

// ExtractIMDbID returns the first imdb://tt... id in a guid list
func ExtractIMDbID(guids []string) (string, bool) {
	return extractGUID(imdbGUIDRegex, guids)
}

// ExtractTVDbID returns the first tvdb://... id in a guid list
func ExtractTVDbID(guids []string) (string, bool) {
	return extractGUID(tvdbGUIDRegex, guids)
}

func extractGUID(re *regexp.Regexp, guids []string) (string, bool) {
	for _, guid := range guids {
		if m := re.FindStringSubmatch(guid); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// MetadataLookup returns the external id guids for a rating key
type MetadataLookup func(ctx context.Context, ratingKey string) ([]string, error)

// ResolutionReport records how a batch of rating keys was resolved
type ResolutionReport struct {
	Attempted int
	Resolved  int
	Unmatched []string         // metadata had no usable external id
	Errors    map[string]error // metadata lookup failed
}

// Skipped is the number of keys that could not be resolved
func (r ResolutionReport) Skipped() int {
	return len(r.Unmatched) + len(r.Errors)
}

// IdentityIndex translates watch-history rating keys into external ids.
// Successful metadata lookups are memoized for the lifetime of the index.
type IdentityIndex struct {
	lookup MetadataLookup
	logger *logrus.Logger

	mu   sync.Mutex
	memo map[string][]string
}

// NewIdentityIndex creates an identity index backed by a metadata lookup
func NewIdentityIndex(lookup MetadataLookup, logger *logrus.Logger) *IdentityIndex {
	return &IdentityIndex{
		lookup: lookup,
		logger: logger,
		memo:   make(map[string][]string),
	}
}

// BuildSeriesIDs maps every distinct grandparent (series) rating key seen in
// episode history to its TVDB id. One lookup is issued per distinct key; a
// failing key is reported and skipped.
func (x *IdentityIndex) BuildSeriesIDs(ctx context.Context, events []models.RawWatchEvent) (map[string]string, ResolutionReport) {
	keys := distinctKeys(events, func(e models.RawWatchEvent) string { return e.GrandparentRatingKey })
	return x.resolve(ctx, keys, ExtractTVDbID)
}

// BuildMovieIDs maps every distinct movie rating key to its IMDb id
func (x *IdentityIndex) BuildMovieIDs(ctx context.Context, events []models.RawWatchEvent) (map[string]string, ResolutionReport) {
	keys := distinctKeys(events, func(e models.RawWatchEvent) string { return e.RatingKey })
	return x.resolve(ctx, keys, ExtractIMDbID)
}

func (x *IdentityIndex) resolve(ctx context.Context, keys []string, extract func([]string) (string, bool)) (map[string]string, ResolutionReport) {
	ids := make(map[string]string, len(keys))
	report := ResolutionReport{Errors: make(map[string]error)}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			report.Errors[key] = err
			continue
		}
		report.Attempted++

		guids, err := x.guids(ctx, key)
		if err != nil {
			x.logger.WithError(err).WithField("rating_key", key).Warn("Metadata lookup failed, skipping")
			report.Errors[key] = err
			continue
		}

		id, ok := extract(guids)
		if !ok {
			report.Unmatched = append(report.Unmatched, key)
			continue
		}
		ids[key] = id
		report.Resolved++
	}

	x.logger.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"resolved":  report.Resolved,
		"skipped":   report.Skipped(),
	}).Debug("Resolved rating keys to external ids")

	return ids, report
}

func (x *IdentityIndex) guids(ctx context.Context, key string) ([]string, error) {
	x.mu.Lock()
	cached, ok := x.memo[key]
	x.mu.Unlock()
	if ok {
		return cached, nil
	}

	guids, err := x.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.memo[key] = guids
	x.mu.Unlock()
	return guids, nil
}

func distinctKeys(events []models.RawWatchEvent, key func(models.RawWatchEvent) string) []string {
	seen := make(map[string]struct{})
	for _, e := range events {
		if k := key(e); k != "" {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
