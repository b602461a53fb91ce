package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesCompleted    Counter
	CyclesFailed       Counter
	OrdersPlaced       Counter
	OrdersFailed       Counter
	OrdersSimulated    Counter
	AssetsConsolidated Counter
	DustConversions    Counter
	DustDeferred       Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesCompleted:    n,
		CyclesFailed:       n,
		OrdersPlaced:       n,
		OrdersFailed:       n,
		OrdersSimulated:    n,
		AssetsConsolidated: n,
		DustConversions:    n,
		DustDeferred:       n,
	}
}
