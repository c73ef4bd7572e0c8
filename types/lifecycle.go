package types

// LifecycleManager is implemented by the background parts of the client:
// the logger, metrics, the cache persister and the cache collector.
type LifecycleManager interface {
	Start() error
	Stop() error
	IsRunning() bool
}
