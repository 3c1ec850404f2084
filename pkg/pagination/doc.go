// Package pagination walks offset/count paginated listing endpoints.
//
// LinkedIn listing endpoints answer with a paging block
// {start, count, total} and an elements array. The paginator requests
// count=PageSize starting at 0, then keeps advancing start by PageSize while
// start < total, appending each page's elements:
//
//	p := pagination.NewPaginator(apiClient, pagination.DefaultConfig(), logger)
//	resp, err := p.Paginate(ctx, url, headers, params)
//
// A first response without paging is returned wrapped as an error payload.
// A later page without elements stops paging; elements gathered so far are
// kept and the failing page is recorded under "exceptions".
//
// Requests are sequential. The Paginator itself satisfies Fetcher, so it can
// be handed to the batch driver as the per-chunk fetcher.
package pagination
