// Package scraper provides HTTP fetching and HTML parsing for the PHIVOLCS latest
// earthquakes listing.
//
// The listing is a plain HTML table. The scraper picks the first table mentioning
// magnitude, depth, latitude, longitude or location, reads its header row and returns
// every following row with at least six cells as a raw quake.Row. Validation of the
// cell values is left to the quake package.
package scraper
