package domain

import (
	"strings"
	"time"
)

// ProduceType is the recognised kind of produce a lot may hold.
type ProduceType string

const (
	ProduceTomato   ProduceType = "tomato"
	ProducePotato   ProduceType = "potato"
	ProduceCarrot   ProduceType = "carrot"
	ProduceLettuce  ProduceType = "lettuce"
	ProduceSpinach  ProduceType = "spinach"
	ProduceCucumber ProduceType = "cucumber"
	ProducePepper   ProduceType = "pepper"
	ProduceOnion    ProduceType = "onion"
)

var produceTypes = map[ProduceType]struct{}{
	ProduceTomato: {}, ProducePotato: {}, ProduceCarrot: {}, ProduceLettuce: {},
	ProduceSpinach: {}, ProduceCucumber: {}, ProducePepper: {}, ProduceOnion: {},
}

func ParseProduceType(value string) (ProduceType, error) {
	pt := ProduceType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := produceTypes[pt]; !ok {
		return "", Validationf("unrecognized produce type %q", value)
	}
	return pt, nil
}

// QualityGrade is the producer-declared grade of a lot.
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
)

// DefaultGrade applies when the producer does not declare one.
const DefaultGrade = GradeA

// ParseQualityGrade returns DefaultGrade for an empty value.
func ParseQualityGrade(value string) (QualityGrade, error) {
	switch QualityGrade(strings.ToUpper(strings.TrimSpace(value))) {
	case "":
		return DefaultGrade, nil
	case GradeA:
		return GradeA, nil
	case GradeB:
		return GradeB, nil
	case GradeC:
		return GradeC, nil
	default:
		return "", Validationf("unrecognized quality grade %q", value)
	}
}

// Lot is a registered quantity of a single produce type from one producer.
// It is never mutated after creation; its custody history lives in the
// tracking events it owns.
type Lot struct {
	ID           string       `json:"id"`
	ContentHash  string       `json:"content_hash"`
	ProducerID   string       `json:"producer_id"`
	ProduceType  ProduceType  `json:"produce_type"`
	Variety      string       `json:"variety,omitempty"`
	Quantity     float64      `json:"quantity"`
	QualityGrade QualityGrade `json:"quality_grade"`
	CreatedAt    time.Time    `json:"created_at"`
}

// OwnedBy reports whether the lot was registered by the given producer.
func (l *Lot) OwnedBy(producerID string) bool {
	return l != nil && l.ProducerID == producerID
}
