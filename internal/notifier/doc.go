// Package notifier announces newly stored events.
//
// The scrape pipeline hands every venue's freshly inserted events to a Notifier.
// LogNotifier writes one structured log line per event; RedisNotifier publishes one JSON
// message per event on a Redis pub/sub channel so other services can react. Multi fans
// out to several notifiers. Notification failures never undo an insert.
package notifier
