// Package retention deletes audit records older than the configured number
// of days, on a standard five-field cron schedule.
package retention
