package docstore_test

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"docstore/internal/docstore"
)

var pdfPayload = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

func TestResolveAllowedTypes(t *testing.T) {
	tests := []struct {
		category string
		want     []string
	}{
		{category: "lab-results", want: []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}},
		{category: "LAB-RESULTS", want: []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}},
		{category: "patient-photos", want: []string{"image/jpeg", "image/jpg", "image/png"}},
		{category: "pdf", want: []string{"application/pdf"}},
		{category: ".png", want: []string{"image/png"}},
		{category: "jpg", want: []string{"image/jpeg", "image/jpg"}},
		{category: "radiology", want: []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := docstore.ResolveAllowedTypes(tt.category)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ResolveAllowedTypes(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestResolveAllowedTypes_Total(t *testing.T) {
	inputs := []string{"", " ", "..", "a/b", "\x00", strings.Repeat("x", 4096), "médical", "PDF ", "exe", "../../etc"}
	for _, in := range inputs {
		if got := docstore.ResolveAllowedTypes(in); len(got) == 0 {
			t.Errorf("ResolveAllowedTypes(%q) returned an empty set", in)
		}
	}
}

func TestResolveAllowedTypes_ReturnsCopy(t *testing.T) {
	got := docstore.ResolveAllowedTypes("lab-results")
	got[0] = "application/x-msdownload"

	if slices.Contains(docstore.ResolveAllowedTypes("lab-results"), "application/x-msdownload") {
		t.Error("mutating the result changed the allowlist")
	}
}

func TestGate_Accept(t *testing.T) {
	gate := docstore.NewGate(docstore.NewNopLogger(), 1024, false)

	tests := []struct {
		name       string
		category   string
		mimeType   string
		payload    []byte
		wantAccept bool
		wantReason string
	}{
		{name: "pdf lab result", category: "lab-results", mimeType: "application/pdf", payload: pdfPayload, wantAccept: true},
		{name: "mime with parameters", category: "lab-results", mimeType: "Application/PDF; charset=binary", payload: pdfPayload, wantAccept: true},
		{name: "exe photo", category: "patient-photos", mimeType: "application/x-msdownload", payload: []byte("MZ"), wantReason: "application/x-msdownload"},
		{name: "pdf photo", category: "patient-photos", mimeType: "application/pdf", payload: pdfPayload, wantReason: "not allowed"},
		{name: "unknown category uses default list", category: "misc", mimeType: "image/png", payload: []byte("png"), wantAccept: true},
		{name: "extension alias", category: "pdf", mimeType: "image/png", payload: []byte("png"), wantReason: "not allowed"},
		{name: "empty payload", category: "lab-results", mimeType: "application/pdf", payload: nil, wantReason: "empty"},
		{name: "oversized payload", category: "lab-results", mimeType: "application/pdf", payload: bytes.Repeat([]byte("a"), 1025), wantReason: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := gate.Accept(tt.category, tt.mimeType, tt.payload)
			if v.Accepted != tt.wantAccept {
				t.Fatalf("Accepted = %v, want %v (reason %q)", v.Accepted, tt.wantAccept, v.Reason)
			}
			if !tt.wantAccept && !strings.Contains(v.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to mention %q", v.Reason, tt.wantReason)
			}
			if len(v.Allowed) == 0 {
				t.Error("verdict carries no allowlist")
			}
		})
	}
}

func TestGate_RejectsEveryDisallowedType(t *testing.T) {
	gate := docstore.NewGate(docstore.NewNopLogger(), 0, false)
	mimeTypes := []string{"application/pdf", "image/jpeg", "image/jpg", "image/png", "text/html", "application/zip", "image/gif"}

	for _, category := range []string{"medical-records", "patient-photos", "pdf", "png", "unknown"} {
		allowed := docstore.ResolveAllowedTypes(category)
		for _, mt := range mimeTypes {
			v := gate.Accept(category, mt, []byte("x"))
			if slices.Contains(allowed, mt) != v.Accepted {
				t.Errorf("Accept(%q, %q).Accepted = %v, allowlist %v", category, mt, v.Accepted, allowed)
			}
		}
	}
}

func TestGate_SniffContent(t *testing.T) {
	gate := docstore.NewGate(docstore.NewNopLogger(), 0, true)

	if v := gate.Accept("lab-results", "application/pdf", pdfPayload); !v.Accepted {
		t.Errorf("real pdf rejected: %s", v.Reason)
	}

	html := []byte("<html><body><script>alert(1)</script></body></html>")
	v := gate.Accept("lab-results", "application/pdf", html)
	if v.Accepted {
		t.Fatal("html declared as pdf was accepted")
	}
	if !strings.Contains(v.Reason, "text/html") {
		t.Errorf("Reason = %q, want it to name the detected type", v.Reason)
	}

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if v := gate.Accept("patient-photos", "image/jpeg", png); !v.Accepted {
		t.Errorf("png declared as jpeg rejected: %s", v.Reason)
	}
}
