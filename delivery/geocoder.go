package main

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/httpclient"
)

// Geocoder resolves a delivery address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (lat, lon float64, err error)
}

// HTTPGeocoder calls a Nominatim-compatible search endpoint.
type HTTPGeocoder struct {
	client *httpclient.Client
}

func NewHTTPGeocoder(client *httpclient.Client) *HTTPGeocoder {
	return &HTTPGeocoder{client: client}
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, address, city string) (float64, float64, error) {
	query := url.Values{
		"q":      {address + ", " + city},
		"format": {"json"},
		"limit":  {"1"},
	}

	var results []geocodeResult
	if err := g.client.Get(ctx, "/search", query, &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, apperr.New(apperr.NotFound, "address_not_found",
			"geocoder returned no match for the address")
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.RemoteError, "geocoder_bad_response",
			"geocoder returned a non numeric latitude", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.RemoteError, "geocoder_bad_response",
			"geocoder returned a non numeric longitude", err)
	}
	return lat, lon, nil
}
