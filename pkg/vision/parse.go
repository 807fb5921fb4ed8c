package vision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/entrhq/pinpoint/pkg/geometry"
)

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// parseEstimate extracts an Estimate from the line protocol the model is
// prompted to emit:
//
//	ELEMENT: login button
//	LEFT: 70
//	TOP: 15
//	WIDTH: 10
//	HEIGHT: 5
//	CONFIDENCE: high
//
// Values are percentages in [0,100]. Parsing is deliberately tolerant of
// decoration around the numbers ("70%", "about 70") since the oracle does
// not always follow instructions to the letter; a response missing any
// geometry field, or carrying a value outside [0,100], is malformed and
// reported as ErrUnavailable.
func parseEstimate(response string) (Estimate, error) {
	fields := map[string]float64{}
	est := Estimate{Confidence: ConfidenceUnknown}

	for _, line := range strings.Split(response, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "ELEMENT":
			est.Element = value
		case "CONFIDENCE":
			est.Confidence = ParseConfidence(strings.ToLower(value))
		case "LEFT", "TOP", "WIDTH", "HEIGHT":
			raw := numberPattern.FindString(value)
			if raw == "" {
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			fields[key] = n
		}
	}

	for _, key := range []string{"LEFT", "TOP", "WIDTH", "HEIGHT"} {
		n, ok := fields[key]
		if !ok {
			return Estimate{}, fmt.Errorf("%w: response missing %s", ErrUnavailable, key)
		}
		if n < 0 || n > 100 {
			return Estimate{}, fmt.Errorf("%w: %s=%v outside [0,100]", ErrUnavailable, key, n)
		}
	}

	est.Box = geometry.BoxPercent{
		Left:   fields["LEFT"] / 100,
		Top:    fields["TOP"] / 100,
		Width:  fields["WIDTH"] / 100,
		Height: fields["HEIGHT"] / 100,
	}
	return est, nil
}
