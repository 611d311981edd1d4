package rpc

// Service is implemented by locally-linked method providers. The service
// decides which endpoints it exports; registration errors (name collisions)
// are reported back so the service can fail if a mandatory handle was
// taken.
type Service interface {
	RegisterEndpoints(r Registry) error
}
