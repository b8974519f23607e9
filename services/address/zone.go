package address

// Zone is a delivery area covering a contiguous postal code range.
type Zone struct {
	Code       string   `json:"code"`
	City       string   `json:"city"`
	Region     string   `json:"region"`
	PostalFrom int      `json:"postalFrom"`
	PostalTo   int      `json:"postalTo"`
	BaseFee    float64  `json:"baseFee"`
	RadiusKm   float64  `json:"radiusKm"`
	Aliases    []string `json:"-"`
}

func (z Zone) ContainsPostalCode(code int) bool {
	return code >= z.PostalFrom && code <= z.PostalTo
}

// Zones is the static table of served areas.
var Zones = []Zone{
	{Code: "ZRH", City: "Zürich", Region: "Zürich", PostalFrom: 8000, PostalTo: 8099, BaseFee: 5.00, RadiusKm: 10, Aliases: []string{"Zurich", "Zuerich"}},
	{Code: "BRN", City: "Bern", Region: "Bern", PostalFrom: 3000, PostalTo: 3030, BaseFee: 5.50, RadiusKm: 8, Aliases: []string{"Berne"}},
	{Code: "BSL", City: "Basel", Region: "Basel-Stadt", PostalFrom: 4000, PostalTo: 4059, BaseFee: 5.50, RadiusKm: 8, Aliases: []string{"Bale"}},
	{Code: "GVA", City: "Genève", Region: "Genève", PostalFrom: 1200, PostalTo: 1299, BaseFee: 6.50, RadiusKm: 10, Aliases: []string{"Geneva", "Genf"}},
	{Code: "LSN", City: "Lausanne", Region: "Vaud", PostalFrom: 1000, PostalTo: 1019, BaseFee: 6.00, RadiusKm: 8},
	{Code: "LUZ", City: "Luzern", Region: "Luzern", PostalFrom: 6000, PostalTo: 6015, BaseFee: 5.50, RadiusKm: 6, Aliases: []string{"Lucerne"}},
	{Code: "WTH", City: "Winterthur", Region: "Zürich", PostalFrom: 8400, PostalTo: 8411, BaseFee: 6.00, RadiusKm: 8},
	{Code: "SGL", City: "St. Gallen", Region: "St. Gallen", PostalFrom: 9000, PostalTo: 9016, BaseFee: 6.00, RadiusKm: 6, Aliases: []string{"Sankt Gallen", "St Gallen"}},
}

// ZoneFee is the delivery fee charged at checkout for orders into z.
func ZoneFee(z Zone) float64 {
	return z.BaseFee
}

func zoneForPostalCode(zones []Zone, code int) (Zone, bool) {
	for _, z := range zones {
		if z.ContainsPostalCode(code) {
			return z, true
		}
	}
	return Zone{}, false
}
