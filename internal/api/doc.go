// Package api provides the brokerage REST client used by the feed bridge.
//
// Operations:
//   - ExchangeCode: swap an OAuth authorization code for a bearer token
//   - AuthorizeFeed: obtain the one-time market-data socket URL
//   - FetchCatalog: download and parse the gzip-compressed instrument catalog
//
// All failures surface as *Error with a Kind from the closed set in
// errors.go. No operation retries.
package api
