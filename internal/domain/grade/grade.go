// Package grade decodes transcript letter grades into numeric scale values.
package grade

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ExemptValue is the scale value of an exempted (waived) course.
const ExemptValue = -1.0

// annotationSeparator splits a grade from trailing notes such as
// "AA / Original Entry".
const annotationSeparator = "/"

// Kind classifies a decoded grade.
type Kind uint8

const (
	// NoValue means the token was absent or not in the scale.
	NoValue Kind = iota
	// Numeric is a regular grade on the scale.
	Numeric
	// Exempt is a waived course; it never counts as an attempt.
	Exempt
)

// String returns the metric label of k.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Exempt:
		return "exempt"
	default:
		return "no_value"
	}
}

// Decoded is the result of decoding one grade token.
type Decoded struct {
	Kind  Kind
	Value float64
}

// Valid reports whether d takes part in attempt aggregation.
func (d Decoded) Valid() bool { return d.Kind == Numeric }

// Scale maps letter-grade tokens to values. Negative values mark exempt tokens.
type Scale map[string]float64

// DefaultScale returns a fresh copy of the standard four-point table.
func DefaultScale() Scale {
	return Scale{
		"AA":  4.00,
		"BA+": 3.75,
		"BA":  3.50,
		"BB+": 3.25,
		"BB":  3.00,
		"CB+": 2.75,
		"CB":  2.50,
		"CC+": 2.25,
		"CC":  2.00,
		"DC+": 1.75,
		"DC":  1.50,
		"DD+": 1.25,
		"DD":  1.00,
		"FF":  0.00,
		"VF":  0.00,
		"F":   0.00,
		"BL":  ExemptValue,
	}
}

// Decoder looks tokens up in a fixed Scale. It is safe for concurrent use.
type Decoder struct {
	scale Scale
}

// NewDecoder copies scale into a Decoder. A nil or empty scale falls back
// to DefaultScale. Keys are trimmed and NFC-normalized.
func NewDecoder(scale Scale) *Decoder {
	if len(scale) == 0 {
		scale = DefaultScale()
	}
	d := &Decoder{scale: make(Scale, len(scale))}
	for token, value := range scale {
		d.scale[canonical(token)] = value
	}
	return d
}

// Decode maps a raw grade cell to a Decoded value. A nil token is NoValue.
func (d *Decoder) Decode(token *string) Decoded {
	if token == nil {
		return Decoded{Kind: NoValue}
	}
	return d.DecodeString(*token)
}

// DecodeString decodes a present grade cell. Only the text before the first
// "/" is considered. Unknown tokens are NoValue.
func (d *Decoder) DecodeString(token string) Decoded {
	head, _, _ := strings.Cut(token, annotationSeparator)
	value, ok := d.scale[canonical(head)]
	if !ok {
		return Decoded{Kind: NoValue}
	}
	if value < 0 {
		return Decoded{Kind: Exempt, Value: ExemptValue}
	}
	return Decoded{Kind: Numeric, Value: value}
}

func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
