package threadrt

import "fmt"

// setupOptions holds configuration options for Runtime creation.
type setupOptions struct {
	clockSource    string
	waitBuckets    int
	metricsEnabled bool
}

// SetupOption configures a Runtime instance.
type SetupOption interface {
	applySetup(*setupOptions) error
}

// setupOptionImpl implements SetupOption.
type setupOptionImpl struct {
	applySetupFunc func(*setupOptions) error
}

func (o *setupOptionImpl) applySetup(opts *setupOptions) error {
	return o.applySetupFunc(opts)
}

// WithClockSource selects the clock backend by name at setup time, as if
// Runtime.SelectClockSource had been called before any clock use. An
// unknown or unavailable name is a configuration error and panics at Setup,
// exactly as a late SelectClockSource would.
func WithClockSource(name string) SetupOption {
	return &setupOptionImpl{func(opts *setupOptions) error {
		opts.clockSource = name
		return nil
	}}
}

// WithWaitBuckets overrides the size of the emulated wait-address bucket
// array. More buckets reduce aliasing (waiters on distinct addresses being
// woken spuriously together) at the cost of memory. The count must be a
// power of two.
func WithWaitBuckets(n int) SetupOption {
	return &setupOptionImpl{func(opts *setupOptions) error {
		if n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("threadrt: wait bucket count must be a power of two, got %d", n)
		}
		opts.waitBuckets = n
		return nil
	}}
}

// WithMetrics enables runtime metrics collection. When enabled, counters can
// be read via Runtime.Metrics(). Disabled by default; the counters cost a
// handful of atomic increments on blocking paths.
func WithMetrics(enabled bool) SetupOption {
	return &setupOptionImpl{func(opts *setupOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveSetupOptions applies SetupOption instances to setupOptions.
func resolveSetupOptions(opts []SetupOption) (*setupOptions, error) {
	cfg := &setupOptions{
		waitBuckets: defaultWaitBuckets,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySetup(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
