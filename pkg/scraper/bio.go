package scraper

import (
	"context"
	"iter"
	"regexp"
	"strings"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"
)

// altAccountPattern matches a bio line pointing at another account of the
// same person, e.g. "alt: @name", "main acc @name", "부계 @name".
var altAccountPattern = regexp.MustCompile(`(?i)(?:alt|sub|main|backup|spare|private|priv|2nd|second|new|old|moved to|부계|본계|뒷계|비계|계정)[^@\n]{0,20}@([A-Za-z0-9_]{1,15})`)

// BioMentions returns the screen names a bio points at under policy
func BioMentions(bio string, policy request.BioPolicy) []string {
	switch policy {
	case request.BioAll:
		return extractMentions(bio)
	case request.BioSmart:
		var names []string
		seen := make(map[string]bool)
		for _, m := range altAccountPattern.FindAllStringSubmatch(bio, -1) {
			key := strings.ToLower(m[1])
			if !seen[key] {
				seen[key] = true
				names = append(names, m[1])
			}
		}
		return names
	default:
		return nil
	}
}

// BioExpander passes every page of an inner scraper through and follows it
// with the accounts mentioned in those users' bios.
type BioExpander struct {
	inner  Scraper
	client twitter.Client
	policy request.BioPolicy
}

func NewBioExpander(inner Scraper, client twitter.Client, policy request.BioPolicy) *BioExpander {
	return &BioExpander{inner: inner, client: client, policy: policy}
}

// TotalCount reports the inner estimate; expansion only adds to it
func (b *BioExpander) TotalCount() *int { return b.inner.TotalCount() }

func (b *BioExpander) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		expanded := make(map[string]bool)

		for r := range b.inner.Scrape(ctx) {
			if !yield(r) {
				return
			}
			if r.Err != nil {
				continue
			}

			names := b.pending(r.Users, expanded)
			if len(names) == 0 {
				continue
			}
			users, ok := lookupNames(ctx, b.client, names, yield)
			if !ok || !yield(Result{Users: users}) {
				return
			}
		}
	}
}

func (b *BioExpander) pending(users []models.User, expanded map[string]bool) []string {
	var names []string
	for _, u := range users {
		expanded[strings.ToLower(u.ScreenName)] = true
	}
	for _, u := range users {
		for _, name := range BioMentions(u.Description, b.policy) {
			key := strings.ToLower(name)
			if !expanded[key] {
				expanded[key] = true
				names = append(names, name)
			}
		}
	}
	return names
}
