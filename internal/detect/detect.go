package detect

import (
	"context"
	"log"
)

// Box is a normalized bounding box: fractions of the original dimensions,
// each in [0,1].
type Box struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one candidate region returned by the inference service.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`

	// Box is nil when the service returned a label without geometry.
	Box *Box `json:"box"`
}

// Client calls the external inference service for a published object.
type Client interface {
	DetectFaces(ctx context.Context, objectKey string) ([]Detection, error)
}

// Best picks the highest-confidence candidate that carries geometry. Ties
// keep the first candidate seen. Returns nil when no candidate qualifies.
func Best(candidates []Detection) *Detection {
	var best *Detection
	bestConfidence := -1.0
	for i := range candidates {
		d := &candidates[i]
		if d.Box == nil {
			continue
		}
		log.Printf("Got %s @ %.2f %.2f with confidence %.2f", d.Label, d.Box.Top, d.Box.Left, d.Confidence)
		if d.Confidence > bestConfidence {
			best = d
			bestConfidence = d.Confidence
		}
	}
	return best
}
