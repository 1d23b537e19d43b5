// Package types defines the value types shared by the tracker packages:
// location samples, the area queries derived from them, photo candidates
// returned by the search service and the photo results kept by the store.
// All of them are immutable once created.
package types
