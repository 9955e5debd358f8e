// Package logging builds the slog loggers used across docbridge.
//
// The console handler renders compact operator-facing lines
// (timestamp LEVEL component: message k=v); the JSON handler feeds the shared
// log file with stable ts/level/msg keys. When both are active they are fanned
// out through slog-multi so every record reaches both sinks. Helpers supply
// typed attrs, standardized field names, component loggers, and a no-op logger
// for tests.
package logging
