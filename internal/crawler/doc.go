// Package crawler builds a site inventory with a bounded depth-first walk.
//
// A Crawler holds stateless collaborators (fetchers, prober, renderer, logger) and may be shared.
// Each Scan owns a private visited-set and inventory that live only for that call, so independent
// scans can run concurrently without coordination.
//
// Within a scan the walk is sequential. Pages are visited in the same order a recursive
// depth-first traversal would produce: links found on a page are taken in document order, capped
// per page, and each one is fully explored before its next sibling. The walk ends when the work
// list drains or the page budget is spent.
//
// Fetch failures below the seed degrade the inventory and never abort the scan. A failure on the
// seed itself is reported as ErrSeedFetch, since no page exists to continue from.
package crawler
