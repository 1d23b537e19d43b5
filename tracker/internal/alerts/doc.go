// Package alerts turns sustained photo-search failures into operator
// notifications. Rules such as "consecutive_failures >= 5" are evaluated
// after every fetch; firing and resolution are delivered to Slack, Teams or
// generic HTTP webhooks. Observers are never told about failures.
package alerts
