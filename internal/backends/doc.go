// Package backends builds the Redis and MongoDB clients used by the process and
// adapts them to the bootstrap lifecycle.
//
// Each backend provides a URL builder, a client constructor that does not touch
// the network, a readiness probe and a Lifespan factory. Redis TLS supports
// three certificate requirement modes: none, optional (chain only) and
// required (chain and host name).
package backends
