package weather

// Climate zone names.
const (
	ClimateNagpur   = "nagpur"
	ClimateNorthern = "northern"
	ClimateTropical = "tropical"
)

// monthClimate is the normal weather of one calendar month.
type monthClimate struct {
	minTemp  float64
	maxTemp  float64
	humidMin float64
	humidMax float64
	rainProb float64
}

// climateTable is indexed by month, January first.
type climateTable [12]monthClimate

var nagpurClimate = climateTable{
	{15, 28, 25, 45, 0.05},
	{18, 31, 25, 40, 0.05},
	{22, 35, 20, 35, 0.10},
	{27, 40, 15, 30, 0.10},
	{30, 43, 20, 35, 0.15},
	{27, 38, 45, 70, 0.50},
	{25, 32, 65, 85, 0.75},
	{25, 30, 70, 90, 0.80},
	{24, 32, 60, 85, 0.60},
	{21, 33, 45, 70, 0.25},
	{17, 30, 35, 55, 0.05},
	{14, 28, 30, 50, 0.05},
}

var (
	northernWinter = monthClimate{-5, 10, 60, 85, 0.40}
	northernShould = monthClimate{5, 20, 50, 75, 0.35}
	northernSummer = monthClimate{15, 30, 45, 70, 0.30}
	tropicalMonth  = monthClimate{23, 33, 65, 90, 0.60}
)

var northernClimate = climateTable{
	northernWinter, northernWinter,
	northernShould, northernShould,
	northernSummer, northernSummer, northernSummer, northernSummer,
	northernShould, northernShould,
	northernWinter, northernWinter,
}

var tropicalClimate = climateTable{
	tropicalMonth, tropicalMonth, tropicalMonth, tropicalMonth,
	tropicalMonth, tropicalMonth, tropicalMonth, tropicalMonth,
	tropicalMonth, tropicalMonth, tropicalMonth, tropicalMonth,
}

// ClimateForLatitude picks a zone for places without an explicit one:
// north of 40° is northern, south of 15° tropical, otherwise the Nagpur
// table.
func ClimateForLatitude(lat float64) string {
	switch {
	case lat > 40:
		return ClimateNorthern
	case lat < 15:
		return ClimateTropical
	default:
		return ClimateNagpur
	}
}

func tableFor(zone string) *climateTable {
	switch zone {
	case ClimateNorthern:
		return &northernClimate
	case ClimateTropical:
		return &tropicalClimate
	default:
		return &nagpurClimate
	}
}
