package ui

import (
	"io/fs"
	"strings"
	"testing"
)

func TestStaticFiles(t *testing.T) {
	for _, name := range []string{"index.html", "app.js", "style.css"} {
		data, err := fs.ReadFile(StaticFiles(), name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestIndexReferencesAssets(t *testing.T) {
	data, err := fs.ReadFile(StaticFiles(), "index.html")
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{"app.js", "style.css", "theme-dark"} {
		if !strings.Contains(string(data), ref) {
			t.Errorf("index.html does not reference %s", ref)
		}
	}
}
