// Package geo holds the small amount of geometry the tracker needs: turning a
// location sample into the rectangular area sent to the photo search, and
// measuring the distance between two samples for the displacement filter.
package geo
