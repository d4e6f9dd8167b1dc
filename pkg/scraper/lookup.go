package scraper

import (
	"context"
	"iter"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"
)

// LookupScraper hydrates an imported list of IDs and screen names
type LookupScraper struct {
	client twitter.Client
	ids    []string
	names  []string
	total  total
}

func NewLookupScraper(client twitter.Client, ids, names []string) *LookupScraper {
	s := &LookupScraper{client: client, ids: ids, names: names}
	s.total.set(len(ids) + len(names))
	return s
}

func (s *LookupScraper) TotalCount() *int { return s.total.get() }

func (s *LookupScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if !hydrate(ctx, s.client, s.ids, yield) {
			return
		}
		for start := 0; start < len(s.names); start += twitter.MaxLookupBatch {
			chunk := s.names[start:min(start+twitter.MaxLookupBatch, len(s.names))]
			users, ok := lookupNames(ctx, s.client, chunk, yield)
			if !ok || !yield(Result{Users: users, Missing: missingNames(chunk, users)}) {
				return
			}
		}
	}
}

// AudioSpaceScraper hydrates the selected participants of an audio space
type AudioSpaceScraper struct {
	client twitter.Client
	ids    []string
	total  total
}

func NewAudioSpaceScraper(client twitter.Client, space models.AudioSpace, sel request.SpaceSelection) *AudioSpaceScraper {
	var ids []string
	seen := make(map[string]bool)
	add := func(group []string) {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if sel.Hosts {
		add(space.HostIDs)
	}
	if sel.Speakers {
		add(space.SpeakerIDs)
	}
	if sel.Listeners {
		add(space.ListenerIDs)
	}

	s := &AudioSpaceScraper{client: client, ids: ids}
	s.total.set(len(ids))
	return s
}

func (s *AudioSpaceScraper) TotalCount() *int { return s.total.get() }

func (s *AudioSpaceScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		hydrate(ctx, s.client, s.ids, yield)
	}
}

// BlocklistScraper yields the raw IDs on the executor's own block list
type BlocklistScraper struct {
	client twitter.Client
	total  total
}

func NewBlocklistScraper(client twitter.Client) *BlocklistScraper {
	return &BlocklistScraper{client: client}
}

func (s *BlocklistScraper) TotalCount() *int { return s.total.get() }

func (s *BlocklistScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		cursor := "-1"
		count := 0
		for {
			page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.IDPage, error) {
				return s.client.ListBlockedIDs(ctx, cursor)
			})
			if !ok {
				return
			}
			count += len(page.IDs)
			if !page.HasNext() {
				s.total.set(count)
			}
			if !yield(Result{IDs: page.IDs}) || !page.HasNext() {
				return
			}
			cursor = page.NextCursor
		}
	}
}
