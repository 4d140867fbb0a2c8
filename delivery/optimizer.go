package main

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

const earthRadiusKm = 6371.0

// OptimizerShipment is the optimizer's view of a geocoded shipment.
type OptimizerShipment struct {
	ID        uuid.UUID
	Latitude  float64
	Longitude float64
}

// RouteOptimizationResult is one vehicle's planned run. ShipmentIDs are in
// visiting order.
type RouteOptimizationResult struct {
	VehicleID                uuid.UUID
	ShipmentIDs              []uuid.UUID
	TotalDistanceKm          decimal.Decimal
	EstimatedDurationMinutes int
}

type OptimizerConfig struct {
	AvgSpeedKph float64
	StopMinutes int
}

// OptimizeRoutes clusters shipments round-robin across the vehicle list
// (vehicle order is significant) and orders each cluster by nearest
// neighbor. The whole computation is deterministic: shipments are first
// sorted by (latitude, longitude, id) and distance ties break by id
// ascending, so the same input always yields the same routes.
func OptimizeRoutes(shipments []OptimizerShipment, vehicles []uuid.UUID, cfg OptimizerConfig) ([]RouteOptimizationResult, error) {
	if len(vehicles) == 0 {
		return nil, apperr.New(apperr.ValidationRejected, "no_vehicles",
			"At least one vehicle required")
	}
	if len(shipments) == 0 {
		return nil, nil
	}

	sorted := make([]OptimizerShipment, len(shipments))
	copy(sorted, shipments)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		if a.Longitude != b.Longitude {
			return a.Longitude < b.Longitude
		}
		return a.ID.String() < b.ID.String()
	})

	clusters := make([][]OptimizerShipment, len(vehicles))
	for i, shipment := range sorted {
		v := i % len(vehicles)
		clusters[v] = append(clusters[v], shipment)
	}

	var results []RouteOptimizationResult
	for v, cluster := range clusters {
		if len(cluster) == 0 {
			continue
		}

		ordered := nearestNeighborOrder(cluster)

		distance := 0.0
		for i := 1; i < len(ordered); i++ {
			distance += haversineKm(ordered[i-1], ordered[i])
		}

		ids := make([]uuid.UUID, len(ordered))
		for i, shipment := range ordered {
			ids[i] = shipment.ID
		}

		drivingMinutes := 0.0
		if cfg.AvgSpeedKph > 0 {
			drivingMinutes = distance / cfg.AvgSpeedKph * 60
		}
		duration := int(math.Round(drivingMinutes)) + len(ordered)*cfg.StopMinutes

		results = append(results, RouteOptimizationResult{
			VehicleID:                vehicles[v],
			ShipmentIDs:              ids,
			TotalDistanceKm:          decimal.NewFromFloat(distance).Round(2),
			EstimatedDurationMinutes: duration,
		})
	}

	return results, nil
}

// nearestNeighborOrder starts at the cluster's first shipment and repeatedly
// takes the closest unused one, breaking ties by id ascending.
func nearestNeighborOrder(cluster []OptimizerShipment) []OptimizerShipment {
	ordered := make([]OptimizerShipment, 0, len(cluster))
	used := make([]bool, len(cluster))

	current := cluster[0]
	ordered = append(ordered, current)
	used[0] = true

	for len(ordered) < len(cluster) {
		best := -1
		bestDistance := math.Inf(1)
		for i, candidate := range cluster {
			if used[i] {
				continue
			}
			d := haversineKm(current, candidate)
			if d < bestDistance ||
				(d == bestDistance && candidate.ID.String() < cluster[best].ID.String()) {
				best = i
				bestDistance = d
			}
		}
		current = cluster[best]
		ordered = append(ordered, current)
		used[best] = true
	}

	return ordered
}

func haversineKm(a, b OptimizerShipment) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
