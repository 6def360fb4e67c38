// Package sharedstate hosts the objects shared by all packed workers within an
// allocation: the handle to the workflow store and the registry of claimed
// work-items.
//
// The service is a gRPC server bound to the loopback interface and protected
// by a shared secret. Workers and the liveness monitor use Connect() to obtain
// proxies that forward every call to the single server-side instance.
package sharedstate
