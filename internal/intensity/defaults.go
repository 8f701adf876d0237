package intensity

// DefaultIntensities is the static fallback table of carbon intensity per
// region in gCO2eq/kWh. Values are long-run averages; they seed the store at
// startup and back every lookup that cannot be served from live data.
var DefaultIntensities = map[string]float64{
	"DE": 148.0, "FR": 20.0, "IT": 160.0, "ES": 79.0, "GB": 136.0,
	"PL": 510.0, "NL": 83.0, "BE": 74.0, "AT": 26.0, "SE": 17.0,
	"SI": 46.0, "DK": 105.0, "NO": 31.0, "FI": 40.0, "CH": 26.0,
	"CZ": 339.0, "HU": 111.0, "RO": 309.0, "PT": 120.0, "IE": 329.0,
	"GR": 274.0, "HR": 183.0, "SK": 156.0, "BG": 311.0, "EE": 50.0,
	"LT": 95.0, "LV": 122.0, "IS": 28.0,
	"AL": 25.0, "AM": 190.0, "BY": 350.0, "BA": 620.0,
	"CY": 600.0, "GE": 150.0, "KZ": 650.0, "XK": 700.0, "LU": 65.0,
	"MT": 400.0, "MD": 380.0, "ME": 450.0, "MK": 550.0,
	"TR": 420.0,
}
