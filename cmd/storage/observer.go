package storage

// Observer receives the outcome of every table operation (metrics, tracing).
type Observer interface {
	ObserveOp(table, op string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(table, op string, err error)

func (f ObserverFunc) ObserveOp(table, op string, err error) { f(table, op, err) }

type nopObserver struct{}

func (nopObserver) ObserveOp(string, string, error) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
