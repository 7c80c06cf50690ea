package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
)

var storeMutations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_store_mutations_total",
		Help: "Store commands by store, operation and final lifecycle state",
	},
	[]string{"store", "op", "state"},
)

func recordMutation(store string, m *domain.Mutation) {
	storeMutations.WithLabelValues(store, m.Op, string(m.State)).Inc()
}
