package metrics

import "time"

// QueueDepthSource reports how many dispatches are currently buffered
// waiting for a worker. Satisfied by *taskproxy.Proxy without this
// package importing taskproxy, which itself imports metrics to
// instrument task completions — a direct import here would cycle.
type QueueDepthSource interface {
	QueueDepth() int
}

// WorkerCountSource reports how many workers are currently running.
// Satisfied by *taskproxy.Swarm, for the same reason.
type WorkerCountSource interface {
	Count() int
}

// Collector periodically samples gauges that only make sense as a
// snapshot — queue depth, worker count — rather than something a single
// call site can increment or observe on its own.
type Collector struct {
	queue   QueueDepthSource
	workers WorkerCountSource
	stopCh  chan struct{}
}

// NewCollector builds a Collector sampling queue and workers on every
// tick. Either may be nil, in which case that gauge is left unset.
func NewCollector(queue QueueDepthSource, workers WorkerCountSource) *Collector {
	return &Collector{
		queue:   queue,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Start begins sampling once every interval.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.sample()
		for {
			select {
			case <-ticker.C:
				c.sample()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) sample() {
	if c.queue != nil {
		TaskQueueDepth.Set(float64(c.queue.QueueDepth()))
	}
	if c.workers != nil {
		TaskWorkersActive.Set(float64(c.workers.Count()))
	}
}
