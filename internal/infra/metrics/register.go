package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	collectors []prometheus.Collector
	registered = map[prometheus.Registerer]bool{}
)

// register queues collectors from each file's init().
func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	collectors = append(collectors, cs...)
}

// Register adds every queued collector to reg. Registering the same
// registerer twice is a no-op.
func Register(reg prometheus.Registerer) error {
	mu.Lock()
	defer mu.Unlock()
	if registered[reg] {
		return nil
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	registered[reg] = true
	return nil
}

// MustRegister registers with the default registry served on /metrics.
func MustRegister() {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}
