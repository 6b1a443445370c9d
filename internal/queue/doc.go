// Package queue implements the durable background task queue over a
// Redis broker: job encoding, enqueueing, worker lifecycle, cron
// scheduling, and the worker health protocol.
//
// Keys are namespaced as <app>:<queue>:<key>, so independent deployments
// sharing a broker never see each other's jobs. Jobs travel from the
// pending list to the processing list atomically; a job is acknowledged
// by removing it from processing, and jobs stuck in processing past
// their own timeout are moved back to pending by the reaper.
package queue
