package mux

import (
	"errors"
	"time"
)

// Config collects the tunables the Session and its engines need,
// following the teacher's plain-struct-plus-defaults shape
// (smux.Config/DefaultConfig) rather than a configuration framework.
type Config struct {
	// MaxReadinessIterations bounds a single Ready() call's dirty-pass
	// loop (spec §4.5). Must stay finite; defaults to 100000.
	MaxReadinessIterations int

	// RegionSize is the fixed size of every buffer the pool issues.
	RegionSize int
	// PoolCapacity bounds how many regions may be checked out at once.
	PoolCapacity int

	// KeepAliveInterval/Timeout govern the H2 PING keepalive cadence
	// (Mux.Keepalive, ConnectionH2.CheckKeepalive); zero
	// KeepAliveInterval disables it. H1 connections ignore both, having
	// no in-band keepalive primitive of their own.
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration

	// StickySessionCookie names the sticky-session cookie the Mux
	// associates with the frontend (spec §3, Session fields).
	StickySessionCookie string
}

// DefaultConfig returns sane defaults, mirroring smux.DefaultConfig.
func DefaultConfig() *Config {
	return &Config{
		MaxReadinessIterations: 100_000,
		RegionSize:             16 * 1024,
		PoolCapacity:           1024,
		KeepAliveInterval:      30 * time.Second,
		KeepAliveTimeout:       90 * time.Second,
		StickySessionCookie:    "COREMUXID",
	}
}

// Verify validates the configuration, mirroring smux's VerifyConfig.
func (c *Config) Verify() error {
	if c.MaxReadinessIterations <= 0 {
		return errors.New("mux: MaxReadinessIterations must be positive and finite")
	}
	if c.RegionSize <= 0 {
		return errors.New("mux: RegionSize must be positive")
	}
	if c.PoolCapacity <= 0 {
		return errors.New("mux: PoolCapacity must be positive")
	}
	if c.KeepAliveInterval < 0 {
		return errors.New("mux: KeepAliveInterval must not be negative")
	}
	if c.KeepAliveInterval > 0 && c.KeepAliveTimeout <= c.KeepAliveInterval {
		return errors.New("mux: KeepAliveTimeout must exceed KeepAliveInterval")
	}
	return nil
}
