package moderation

import "context"

// DefaultThreshold is the probability above which a flagged class makes an image unsafe.
const DefaultThreshold = 0.6

// Prediction is one class score returned by the classifier
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Verdict is the outcome of a safety check
type Verdict struct {
	Safe        bool         `json:"safe"`
	Predictions []Prediction `json:"predictions"`
}

// Checker classifies an image
type Checker interface {
	Check(ctx context.Context, image []byte, contentType string) (*Verdict, error)
}

var flaggedClasses = map[string]bool{"Porn": true, "Hentai": true}

// Evaluate applies the safety rule: unsafe iff any flagged class scores above threshold.
func Evaluate(predictions []Prediction, threshold float64) *Verdict {
	for _, p := range predictions {
		if flaggedClasses[p.ClassName] && p.Probability > threshold {
			return &Verdict{Safe: false, Predictions: predictions}
		}
	}
	return &Verdict{Safe: true, Predictions: predictions}
}
