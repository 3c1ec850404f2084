// Package query builds LinkedIn Marketing API request parameters.
//
// It covers three concerns:
//
//   - the per-category base URL and parameter envelope (Builder.Build)
//   - indexed URN filters built from parent entity ids (EncodeIDs, EncodeAccountIDs)
//   - analytics date ranges and their validation (DateRange, ValidateDateRange)
//
// Every call returns a fresh Params map; nothing is shared between requests.
//
// Example:
//
//	b := query.NewBuilder(query.DefaultBaseURL)
//	spec, err := b.Build(category.Group, query.EncodeAccountIDs([]string{"507404993"}), query.DateRange{})
//	if err != nil {
//		return err
//	}
//	resp, err := apiClient.Get(ctx, spec.URL, headers, spec.Params)
package query
