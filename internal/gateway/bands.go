package gateway

import (
	"fmt"
	"strings"

	"monitoring-service/internal/models"
)

// bandSet maps spectral roles to provider band names.
type bandSet struct {
	Collection string
	NIR        string
	Red        string
	Green      string
	Blue       string
	SWIR1      string
	SWIR2      string
}

var providerBands = map[models.Provider]bandSet{
	models.ProviderSentinel2: {
		Collection: "COPERNICUS/S2_SR",
		NIR:        "B8", Red: "B4", Green: "B3", Blue: "B2", SWIR1: "B11", SWIR2: "B12",
	},
	models.ProviderLandsat: {
		Collection: "LANDSAT/LC08+LC09/C02/T1_L2",
		NIR:        "SR_B5", Red: "SR_B4", Green: "SR_B3", Blue: "SR_B2", SWIR1: "SR_B6", SWIR2: "SR_B7",
	},
}

// MODIS vegetation products ship precomputed index bands only.
var modisBands = map[string]string{
	models.IndexNDVI: "NDVI * 0.0001",
	models.IndexEVI:  "EVI * 0.0001",
}

const modisCollection = "MODIS/061/MOD13Q1"

// indexTemplates use role placeholders resolved against a bandSet.
var indexTemplates = map[string]string{
	models.IndexNDVI:  "(NIR - RED) / (NIR + RED)",
	models.IndexEVI:   "2.5 * (NIR - RED) / (NIR + 6 * RED - 7.5 * BLUE + 1)",
	models.IndexSAVI:  "1.5 * (NIR - RED) / (NIR + RED + 0.5)",
	models.IndexNDMI:  "(NIR - SWIR1) / (NIR + SWIR1)",
	models.IndexNBR:   "(NIR - SWIR2) / (NIR + SWIR2)",
	models.IndexNDWI:  "(GREEN - NIR) / (GREEN + NIR)",
	models.IndexGNDVI: "(NIR - GREEN) / (NIR + GREEN)",
	models.IndexOSAVI: "1.16 * (NIR - RED) / (NIR + RED + 0.16)",
}

// Collection returns the provider image collection name.
func Collection(provider models.Provider) (string, error) {
	if provider == models.ProviderMODIS {
		return modisCollection, nil
	}
	bands, ok := providerBands[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	return bands.Collection, nil
}

// Expression resolves the band-math expression of an index for a provider.
func Expression(provider models.Provider, indexCode string) (string, error) {
	code := strings.ToUpper(indexCode)

	if provider == models.ProviderMODIS {
		expr, ok := modisBands[code]
		if !ok {
			return "", fmt.Errorf("%w: %s on %s", models.ErrUnsupportedIndex, code, provider)
		}
		return expr, nil
	}

	bands, ok := providerBands[provider]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider %q", models.ErrUnsupportedIndex, provider)
	}
	template, ok := indexTemplates[code]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", models.ErrUnsupportedIndex, code, provider)
	}

	replacer := strings.NewReplacer(
		"SWIR1", bands.SWIR1,
		"SWIR2", bands.SWIR2,
		"GREEN", bands.Green,
		"BLUE", bands.Blue,
		"NIR", bands.NIR,
		"RED", bands.Red,
	)
	return replacer.Replace(template), nil
}

// SupportedIndices lists the index codes a provider can compute.
func SupportedIndices(provider models.Provider) []string {
	if provider == models.ProviderMODIS {
		return []string{models.IndexNDVI, models.IndexEVI}
	}
	if _, ok := providerBands[provider]; !ok {
		return nil
	}
	return []string{
		models.IndexNDVI, models.IndexEVI, models.IndexSAVI, models.IndexNDMI,
		models.IndexNBR, models.IndexNDWI, models.IndexGNDVI, models.IndexOSAVI,
	}
}
