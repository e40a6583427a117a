package dictionary

// Classification labels.
const (
	LabelADC       = "adc"
	LabelAmbiguous = "ambiguous"
	LabelNotADC    = "not_adc"
)

// Label thresholds on the [0,1] score.
const (
	ADCThreshold       = 0.5
	AmbiguousThreshold = 0.2
)

// Classification is the ADC-likelihood verdict for a text.
type Classification struct {
	Score   float64  `json:"score"`
	Label   string   `json:"label"`
	Signals []string `json:"signals,omitempty"`
}

// Classify scores free text for structural plausibility of being an ADC.
// The score always lies in [0,1].
func (d *Dictionaries) Classify(text string) Classification {
	corpus := NormalizeCorpus(text)
	var score float64
	var signals []string

	if t, ok := d.containsAny(corpus, d.Terms.Conjugate); ok {
		score += 0.5
		signals = append(signals, "conjugate:"+t)
	}
	if t, ok := d.containsAny(corpus, d.Terms.INNSuffixes); ok {
		score += 0.35
		signals = append(signals, "inn_suffix:"+t)
	}
	if t, ok := d.ScanPayload(corpus); ok {
		score += 0.2
		signals = append(signals, "payload:"+t)
	}
	if t, ok := d.ScanLinker(corpus); ok {
		score += 0.1
		signals = append(signals, "linker:"+t)
	}
	if ab := ExtractAntibody(corpus); ab != "" {
		score += 0.1
		signals = append(signals, "antibody:"+ab)
	}
	if t, ok := d.containsAny(corpus, d.Terms.Negative); ok {
		score -= 0.2
		signals = append(signals, "negative:"+t)
	}

	score = clamp01(score)
	return Classification{Score: score, Label: labelFor(score), Signals: signals}
}

func labelFor(score float64) string {
	switch {
	case score >= ADCThreshold:
		return LabelADC
	case score >= AmbiguousThreshold:
		return LabelAmbiguous
	default:
		return LabelNotADC
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
