package extract

import (
	"regexp"
	"strings"

	"github.com/certward/certificate-pipeline/pkg/certificate"
)

// Each field gets an ordered cascade of patterns tried against the lower-cased
// recognized text. The first pattern that matches wins and the cascade stops
// for that field; later patterns are never consulted. Per field the cascade
// runs labeled-prefix first, then a contextual certificate phrase, then a bare
// structural pattern as last resort. The bare patterns are permissive and are
// the primary source of false positives on noisy scans.
type cascade struct {
	field    string
	patterns []*regexp.Regexp
}

var cascades = []cascade{
	{
		field: certificate.FieldName,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:name|student|candidate)[\s:]+([a-z][a-z\s]{1,49})`),
			regexp.MustCompile(`this is to certify that\s+([a-z][a-z\s]{1,49})`),
			regexp.MustCompile(`(?:mr\.|ms\.|miss)\s+([a-z][a-z\s]{1,49})`),
		},
	},
	{
		field: certificate.FieldRollNo,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:roll|reg|registration|student)\s*(?:no|number|id)[\s:]*([a-z0-9]{4,20})`),
			regexp.MustCompile(`(?:roll|reg)\s*:\s*([a-z0-9]{4,20})`),
			regexp.MustCompile(`([a-z]{2}[0-9]{4,8})`),
		},
	},
	{
		field: certificate.FieldCertificateID,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:certificate|cert)\s*(?:no|number|id)[\s:]*([a-z0-9][a-z0-9-]{3,29})`),
			regexp.MustCompile(`(?:serial|ref)\s*(?:no|number)[\s:]*([a-z0-9][a-z0-9-]{3,29})`),
			regexp.MustCompile(`(cert-[a-z0-9-]{4,20})`),
		},
	},
	{
		field: certificate.FieldMarks,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:marks|grade|score|percentage)[\s:]*([0-9]{1,3}\.?[0-9]*%?)`),
			regexp.MustCompile(`(?:secured|obtained)\s*([0-9]{1,3}\.?[0-9]*%?)`),
			regexp.MustCompile(`([0-9]{1,3}\.?[0-9]*%)`),
		},
	},
	{
		field: certificate.FieldInstitution,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:university|college|institute|school)\s*(?:of)?\s*([a-z][a-z\s]{4,99})`),
			regexp.MustCompile(`(?:issued by|from)\s+([a-z][a-z\s]{4,99})`),
			regexp.MustCompile(`([a-z][a-z\s]*(?:university|college|institute))`),
		},
	},
}

// Fields populates the fixed field set from recognized text. Matching is
// case-insensitive: the text is lower-cased once up front and all patterns
// are written in lowercase. A field with no matching pattern is left absent
// from the result, never set to an empty string.
func Fields(rawText string) certificate.Fields {
	text := strings.ToLower(rawText)
	fields := make(certificate.Fields, len(cascades))
	for _, c := range cascades {
		for _, p := range c.patterns {
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if value := strings.TrimSpace(m[1]); value != "" {
				fields[c.field] = value
			}
			break
		}
	}
	return fields
}
