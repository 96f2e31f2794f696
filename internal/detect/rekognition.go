package detect

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// Rekognition detects faces by running a custom labels model over an
// already-published object, avoiding a second upload of the image bytes.
type Rekognition struct {
	api    *rekognition.Client
	bucket string
	model  string
}

// NewRekognition creates a client bound to one bucket and model version ARN.
func NewRekognition(api *rekognition.Client, bucket, model string) *Rekognition {
	return &Rekognition{api: api, bucket: bucket, model: model}
}

// DetectFaces runs the model against the published object and returns every
// candidate label, geometry or not.
func (r *Rekognition) DetectFaces(ctx context.Context, objectKey string) ([]Detection, error) {
	out, err := r.api.DetectCustomLabels(ctx, &rekognition.DetectCustomLabelsInput{
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(r.bucket),
				Name:   aws.String(objectKey),
			},
		},
		ProjectVersionArn: aws.String(r.model),
	})
	if err != nil {
		return nil, fmt.Errorf("detect custom labels for %s: %w", objectKey, err)
	}

	detections := make([]Detection, 0, len(out.CustomLabels))
	for _, label := range out.CustomLabels {
		d := Detection{
			Label:      aws.ToString(label.Name),
			Confidence: float64(aws.ToFloat32(label.Confidence)),
		}
		if label.Geometry != nil && label.Geometry.BoundingBox != nil {
			bb := label.Geometry.BoundingBox
			d.Box = &Box{
				Top:    float64(aws.ToFloat32(bb.Top)),
				Left:   float64(aws.ToFloat32(bb.Left)),
				Width:  float64(aws.ToFloat32(bb.Width)),
				Height: float64(aws.ToFloat32(bb.Height)),
			}
		}
		detections = append(detections, d)
	}

	return detections, nil
}
