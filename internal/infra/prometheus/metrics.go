package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog lookup outcomes.
const (
	CatalogFound    = "found"
	CatalogNotFound = "not_found"
	CatalogError    = "error"
)

// Code filter miss outcomes.
const (
	FilterMissFound  = "found"
	FilterMissAbsent = "absent"
)

var (
	// ScansTotal counts successful public scans by destination mode.
	ScansTotal = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: "powerqr",
		Name:      "scans_total",
		Help:      "Public QR code scans that were redirected.",
	}, []string{"destination"})

	// CatalogLookupsTotal counts Shopify product lookups by outcome.
	CatalogLookupsTotal = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: "powerqr",
		Name:      "catalog_lookups_total",
		Help:      "Shopify catalog product lookups made while enriching QR codes.",
	}, []string{"outcome"})

	// CodeFilterMissesTotal counts scans the known-id filter did not recognise, by
	// whether the store had the code.
	CodeFilterMissesTotal = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: "powerqr",
		Name:      "code_filter_misses_total",
		Help:      "Scans of ids the known-id filter had not seen.",
	}, []string{"result"})
)
