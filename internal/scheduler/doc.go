// Package scheduler runs the fixed-cadence signal loop.
//
// Each tick computes one signal and publishes it on the scheduler's outbound
// channel; the relay hub fans it out to connected clients. A tick failure is
// logged and isolated; the loop always reaches the next tick and stops only
// on explicit shutdown.
package scheduler
