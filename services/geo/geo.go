package geo

import "math"

const (
	EarthRadiusKm   = 6371.0
	AverageSpeedKmh = 30.0
	BaseFee         = 5.00
	PerKmFee        = 1.50
	KmPerDegreeLat  = 111.0
)

type Point struct {
	Lat float64 `json:"lat" form:"lat"`
	Lon float64 `json:"lon" form:"lon"`
}

type Box struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance is the Haversine great-circle distance in km, rounded to one decimal.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return round(EarthRadiusKm*c, 1)
}

// TravelTime returns whole minutes at the average urban speed.
func TravelTime(distanceKm float64) int {
	return int(math.Ceil(distanceKm * 60 / AverageSpeedKmh))
}

// DeliveryFee is the distance based fee, rounded to two decimals.
func DeliveryFee(distanceKm float64) float64 {
	return round(BaseFee+distanceKm*PerKmFee, 2)
}

// BoundingBox returns a coarse rectangle around (lat, lon) for prefiltering
// before exact distance checks.
func BoundingBox(lat, lon, radiusKm float64) Box {
	dLat := radiusKm / KmPerDegreeLat
	dLon := radiusKm / (KmPerDegreeLat * math.Cos(radians(lat)))

	return Box{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLon: lon - dLon,
		MaxLon: lon + dLon,
	}
}

type Estimate struct {
	DistanceKm    float64 `json:"distanceKm"`
	TravelMinutes int     `json:"travelMinutes"`
	DeliveryFee   float64 `json:"deliveryFee"`
}

func EstimateDelivery(from, to Point) Estimate {
	d := Distance(from.Lat, from.Lon, to.Lat, to.Lon)
	return Estimate{
		DistanceKm:    d,
		TravelMinutes: TravelTime(d),
		DeliveryFee:   DeliveryFee(d),
	}
}
