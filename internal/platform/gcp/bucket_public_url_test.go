package gcp

import "testing"

func TestPublicObjectURL(t *testing.T) {
	cases := []struct {
		name     string
		cdn      string
		mode     ObjectStorageMode
		base     string
		emulator string
		want     string
	}{
		{"cdn wins", "cdn.lumen.dev", ObjectStorageModeGCS, "", "", "https://cdn.lumen.dev/artifacts/a.html"},
		{"gcs default", "", ObjectStorageModeGCS, "", "", "https://storage.googleapis.com/bkt/artifacts/a.html"},
		{"gcs public base", "", ObjectStorageModeGCS, "http://localhost:9000", "", "http://localhost:9000/bkt/artifacts/a.html"},
		{"emulator", "", ObjectStorageModeGCSEmulator, "", "http://fake-gcs:4443", "http://fake-gcs:4443/storage/v1/b/bkt/o/artifacts%2Fa.html?alt=media"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := publicObjectURL("bkt", "/artifacts/a.html", tc.cdn, tc.mode, tc.base, tc.emulator)
			if got != tc.want {
				t.Fatalf("url: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := contentTypeForKey("artifacts/x/1.html"); got != "text/html; charset=utf-8" {
		t.Fatalf("html: got=%q", got)
	}
	if got := contentTypeForKey("artifacts/x/1.bin"); got != "" {
		t.Fatalf("bin: want empty got=%q", got)
	}
}
