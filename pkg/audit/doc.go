// Package audit mirrors access-log records into a SQLite database so they
// can be queried and pruned independently of the flat log file.
//
// The Recorder is registered as a logging.Sink on the EventLog. Records are
// queued and written by a single background worker; when the queue is full
// new records are dropped and counted rather than slowing requests down.
//
// Retention is handled by the retention subpackage, which deletes records
// older than the configured number of days on a cron schedule.
package audit
