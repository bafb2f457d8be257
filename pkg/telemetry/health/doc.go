// Package health watches the upstream model server.
//
// A Monitor runs a probe on an interval and keeps the last result. It logs
// when the upstream goes down and when it comes back, so an operator sees
// the outage in the process log even when no client is calling.
//
//	monitor := health.NewMonitor("upstream", func(ctx context.Context) error {
//	    if !client.CheckHealth(ctx) {
//	        return errors.New("upstream did not answer 200")
//	    }
//	    return nil
//	}, 30*time.Second, 5*time.Second, logger)
//	go monitor.Run(ctx)
//
// The upstream client's CheckHealth also updates the upstream health gauge
// when metrics are enabled.
package health
