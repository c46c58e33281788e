package server

import "time"

// writeTimeout is long because admin-triggered harvests reply only once the
// run completes.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 15 * time.Minute
	idleTimeout  = 60 * time.Second
)

var shutdownTimeout = 10 * time.Second
