package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	opAdd    = "add"
	opRemove = "remove"

	resultOK    = "ok"
	resultError = "error"
)

// Reconciliation outcomes.
const (
	OutcomeAnonymous = "anonymous"
	OutcomeInSync    = "in_sync"
	OutcomeApplied   = "applied"
	OutcomeError     = "error"
)

var (
	wishlistMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_wishlist_mutations_total",
			Help: "Local wishlist mutations that changed the set",
		},
		[]string{"op"},
	)

	wishlistRemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_wishlist_remote_calls_total",
			Help: "Remote wishlist calls issued after an optimistic mutation",
		},
		[]string{"op", "result"},
	)

	wishlistRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_wishlist_rollbacks_total",
			Help: "Optimistic wishlist mutations reverted after a remote failure",
		},
		[]string{"op"},
	)

	wishlistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_wishlist_size",
			Help: "Number of ids in the local wishlist",
		},
	)

	reconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reconcile_runs_total",
			Help: "Wishlist reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	reconcileAdds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reconcile_adds_total",
			Help: "Remote adds issued by reconciliation",
		},
		[]string{"result"},
	)

	cartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Cart mutations applied",
		},
		[]string{"op"},
	)
)
