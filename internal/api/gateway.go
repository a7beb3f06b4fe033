// Package api wires the gateway's HTTP surface: the chi router, the
// pipeline middleware chain, and the handlers behind every route. A single
// Gateway struct holds everything a handler needs — the same "one
// application context, built once at boot" shape helm's cmd/helm wires by
// hand in runServer.
package api

import (
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/audit"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/config"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/connector"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/intent"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/history"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/telemetry"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/tenants"
)

// Gateway bundles every subsystem a handler reaches into. It is built once
// at boot and never mutated afterward; concurrent requests only ever read
// its fields or call into the subsystems' own goroutine-safe methods.
type Gateway struct {
	Store      store.Store
	Resolver   *auth.Resolver
	Evaluator  *policy.Evaluator
	History    *history.Ring
	Intents    *intent.Manager
	Vault      *credentials.Vault
	Connectors *connector.Registry
	Audit      *audit.Recorder
	Telemetry  *telemetry.Provider
	Tenants    *tenants.Provisioner
	Config     *config.Config
}

// New builds a Gateway from its already-constructed subsystems. It performs
// no I/O itself; cmd/gateway is responsible for opening the store, loading
// config, and constructing each field before calling this.
func New(
	s store.Store,
	resolver *auth.Resolver,
	evaluator *policy.Evaluator,
	h *history.Ring,
	intents *intent.Manager,
	vault *credentials.Vault,
	connectors *connector.Registry,
	rec *audit.Recorder,
	tel *telemetry.Provider,
	tp *tenants.Provisioner,
	cfg *config.Config,
) *Gateway {
	return &Gateway{
		Store:      s,
		Resolver:   resolver,
		Evaluator:  evaluator,
		History:    h,
		Intents:    intents,
		Vault:      vault,
		Connectors: connectors,
		Audit:      rec,
		Telemetry:  tel,
		Tenants:    tp,
		Config:     cfg,
	}
}
