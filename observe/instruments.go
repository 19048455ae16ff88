package observe

// Instruments bundles the telemetry handles used by the cache and executor.
//
// Contract:
//   - Concurrency: all members are safe for concurrent use.
//   - Nil members are replaced with no-op implementations by Normalize.
type Instruments struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// Normalize returns a copy with every nil member replaced by a no-op.
func (i Instruments) Normalize() Instruments {
	if i.Tracer == nil {
		i.Tracer = NopTracer()
	}
	if i.Metrics == nil {
		i.Metrics = NopMetrics()
	}
	if i.Logger == nil {
		i.Logger = NopLogger()
	}
	return i
}

// InstrumentsFromObserver creates Instruments from an Observer.
func InstrumentsFromObserver(obs Observer) (Instruments, error) {
	if obs == nil {
		return Instruments{}, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Instruments{}, err
	}

	return Instruments{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}
