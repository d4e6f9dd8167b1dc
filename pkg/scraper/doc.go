// Package scraper enumerates the accounts a session acts on.
//
// Each target kind has a strategy that turns a paginated platform listing
// into a lazy iter.Seq of Results. Failures travel through the sequence as
// values: a rate limited page is yielded as an error Result and requested
// again if the consumer keeps ranging, so a pause never loses the cursor.
//
//	s, err := scraper.New(req, scraper.Config{QuickModeLimit: 200})
//	for r := range s.Scrape(ctx) {
//		if errors.IsRateLimit(r.Err) {
//			time.Sleep(time.Minute)
//			continue
//		}
//		...
//	}
package scraper
