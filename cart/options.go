package cart

// Option defines a functional option for configuring a Cart.
type Option func(*Cart) error

// WithLogger sets the logger for the Cart.
//
// Debug level: mutation flow details (development use)
// Info level: completed mutations with timings (production-safe)
// Warn level: dropped snapshot entries, vetoed mutations
// Error level: storage failures.
func WithLogger(logger Logger) Option {
	return func(c *Cart) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Cart. When both
// loggers are configured, the contextual one is preferred so messages carry
// trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *Cart) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Cart. The collector
// receives mutation durations and veto counters.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *Cart) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithItemValidator replaces the default rule-based item validator.
func WithItemValidator(validator ItemValidator) Option {
	return func(c *Cart) error {
		if validator == nil {
			return ErrNilValidator
		}

		c.validator = validator
		return nil
	}
}

// WithFormat sets the presentation format used by the Formatted* getters.
func WithFormat(format Format) Option {
	return func(c *Cart) error {
		c.formatter = NewFormatter(format)
		return nil
	}
}

// WithAssociatedModels registers the model names items may be associated
// with. Associating an unregistered name fails with ErrUnknownModel.
func WithAssociatedModels(names ...string) Option {
	return func(c *Cart) error {
		for _, name := range names {
			c.knownModels[name] = struct{}{}
		}

		return nil
	}
}
