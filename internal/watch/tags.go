// Package watch correlates library items with per-user watch history and
// decides which items are safe to remove.
//
// Everything in this package operates on already-fetched, immutable data and
// holds no shared mutable state beyond the identity memo, so independent
// invocations (movies and series, for instance) can run concurrently.
package watch

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// DefaultTagPattern matches tags such as "42 - alice"
const DefaultTagPattern = `^\d+ - (.+)$`

// ErrInvalidTagPattern is returned when the user tag pattern cannot be used
var ErrInvalidTagPattern = errors.New("invalid user tag pattern")

// TagLookup returns the label of a tag
type TagLookup func(ctx context.Context, tagID int) (string, error)

// TagResolver extracts the requester username from tag labels
type TagResolver struct {
	pattern *regexp.Regexp
	logger  *logrus.Logger
}

// CompileTagPattern compiles a user tag pattern. The pattern is anchored at
// the start of the label and must contain a capture group for the username.
func CompileTagPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultTagPattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTagPattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: pattern %q has no capture group", ErrInvalidTagPattern, pattern)
	}
	return re, nil
}

// NewTagResolver creates a resolver for the given pattern
func NewTagResolver(pattern string, logger *logrus.Logger) (*TagResolver, error) {
	re, err := CompileTagPattern(pattern)
	if err != nil {
		return nil, err
	}
	return &TagResolver{pattern: re, logger: logger}, nil
}

// ResolveLabel returns the username encoded in a single label
func (r *TagResolver) ResolveLabel(label string) (string, bool) {
	matches := r.pattern.FindStringSubmatch(label)
	if len(matches) < 2 || matches[1] == "" {
		return "", false
	}
	return matches[1], true
}

// Resolve returns the username of the first tag whose label matches, in
// input order. A failing lookup skips that tag; resolution itself never fails.
func (r *TagResolver) Resolve(ctx context.Context, tagIDs []int, lookup TagLookup) (string, bool) {
	for _, id := range tagIDs {
		label, err := lookup(ctx, id)
		if err != nil {
			r.logger.WithError(err).WithField("tag_id", id).Debug("Tag lookup failed, skipping")
			continue
		}
		if user, ok := r.ResolveLabel(label); ok {
			return user, true
		}
	}
	return "", false
}

// NonUserLabels returns the labels of tags that are not requester tags
func (r *TagResolver) NonUserLabels(ctx context.Context, tagIDs []int, lookup TagLookup) []string {
	var labels []string
	for _, id := range tagIDs {
		label, err := lookup(ctx, id)
		if err != nil {
			continue
		}
		if _, ok := r.ResolveLabel(label); !ok && label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
