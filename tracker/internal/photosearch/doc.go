// Package photosearch is the HTTP client for the remote photo-search API.
//
// A fetch sends GET <endpoint>?<params>&minx=..&miny=..&maxx=..&maxy=.. and
// expects {"photos":[{"photo_file_url":"..."}]}. Timeouts, connection errors
// and 5xx/408/429 responses are retried with truncated exponential backoff.
// Every failure is returned as *Error carrying a Kind. Responses with at
// least one photo are cached per area, and outgoing requests can be rate
// limited.
package photosearch
