package docstore

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// DefaultCategory is used when a caller does not name a category.
const DefaultCategory = "medical-records"

// DefaultMaxPayloadBytes bounds a single upload (50MB).
const DefaultMaxPayloadBytes int64 = 50 * 1024 * 1024

var (
	documentTypes = []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}
	imageTypes    = []string{"image/jpeg", "image/jpg", "image/png"}

	// categoryTypes is the declared allowlist per logical category.
	categoryTypes = map[string][]string{
		"medical-records":     documentTypes,
		"prescriptions":       documentTypes,
		"lab-results":         documentTypes,
		"patient-photos":      imageTypes,
		"insurance-documents": documentTypes,
		"personal-documents":  documentTypes,
		"exam-documents":      documentTypes,
	}

	// extensionTypes maps bare file extensions used as a category.
	extensionTypes = map[string][]string{
		"pdf":  {"application/pdf"},
		"jpg":  {"image/jpeg", "image/jpg"},
		"jpeg": {"image/jpeg", "image/jpg"},
		"png":  {"image/png"},
	}

	// defaultTypes applies to any category not otherwise known.
	defaultTypes = documentTypes
)

// NormalizeCategory lower-cases and trims a category name.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// NormalizeMimeType lower-cases a MIME type and drops any parameters.
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// ResolveAllowedTypes returns the MIME types permitted for category. Lookup
// falls through the known categories, then bare extension aliases (with or
// without a leading dot), then a conservative default list. The result is
// never empty and is sorted.
func ResolveAllowedTypes(category string) []string {
	c := NormalizeCategory(category)
	if types, ok := categoryTypes[c]; ok {
		return sortedCopy(types)
	}
	if types, ok := extensionTypes[strings.TrimPrefix(c, ".")]; ok {
		return sortedCopy(types)
	}
	return sortedCopy(defaultTypes)
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

// Verdict is the gate's decision for one inbound payload.
type Verdict struct {
	Accepted bool
	Reason   string
	Allowed  []string
}

// Gate rejects disallowed content before any storage write. It is CPU-only.
type Gate struct {
	logger       Logger
	maxSize      int64
	sniffContent bool
}

// NewGate creates a Gate. maxSize <= 0 selects DefaultMaxPayloadBytes.
// When sniffContent is set, the payload's detected type must belong to the
// same family as the declared type.
func NewGate(logger Logger, maxSize int64, sniffContent bool) *Gate {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadBytes
	}
	return &Gate{logger: logger, maxSize: maxSize, sniffContent: sniffContent}
}

// Accept evaluates a payload against the category allowlist and size limits.
// Rejections are logged with enough context for later review.
func (g *Gate) Accept(category, mimeType string, payload []byte) Verdict {
	allowed := ResolveAllowedTypes(category)
	mt := NormalizeMimeType(mimeType)
	size := int64(len(payload))

	v := Verdict{Accepted: true, Allowed: allowed}
	switch {
	case !slices.Contains(allowed, mt):
		v = Verdict{Reason: fmt.Sprintf("mime type %q is not allowed for category %q", mimeType, category), Allowed: allowed}
	case size == 0:
		v = Verdict{Reason: "payload is empty", Allowed: allowed}
	case size > g.maxSize:
		v = Verdict{Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", size, g.maxSize), Allowed: allowed}
	case g.sniffContent:
		if detected := NormalizeMimeType(http.DetectContentType(payload)); !sameFamily(detected, mt) {
			v = Verdict{Reason: fmt.Sprintf("content detected as %q does not match declared %q", detected, mt), Allowed: allowed}
		}
	}

	if !v.Accepted {
		ingestTotal.WithLabelValues("rejected").Inc()
		g.logger.Warn("upload rejected",
			"category", category,
			"mime_type", mimeType,
			"size", size,
			"allowed", strings.Join(allowed, ","),
			"reason", v.Reason,
		)
	}
	return v
}

// sameFamily matches exact types, then the top-level type (image/*), which
// covers image/jpg vs image/jpeg.
func sameFamily(detected, declared string) bool {
	if detected == declared {
		return true
	}
	d, _, _ := strings.Cut(detected, "/")
	e, _, _ := strings.Cut(declared, "/")
	return d == e && d != "application"
}
