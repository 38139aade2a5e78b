// Package msn implements the provider adapter for MSN Money. MSN covers
// quote history for global tickers, indices, and currency pairs; it does
// not publish Vietnamese company filings, so only the quote report kinds
// are served and everything else fails permanently.
package msn
