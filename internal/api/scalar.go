package api

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
	<title>{{.Title}} - API</title>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<style>body { margin: 0; }</style>
</head>
<body>
	<script id="api-reference" data-url="{{.SpecURL}}" data-configuration="{{.Configuration}}"></script>
	<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`))

type scalarConfig struct {
	Theme         string            `json:"theme"`
	Layout        string            `json:"layout"`
	HideModels    bool              `json:"hideModels"`
	DarkMode      bool              `json:"darkMode"`
	MetaData      map[string]string `json:"metaData"`
	HideClientBar bool              `json:"hideClientButton"`
}

// ScalarHandler serves the Scalar API reference for specURL. Title and
// description are HTML-escaped.
func ScalarHandler(specURL, title, description string) http.Handler {
	cfg := scalarConfig{
		Theme:         "purple",
		Layout:        "modern",
		DarkMode:      true,
		HideClientBar: true,
		MetaData:      map[string]string{"title": title, "description": description},
	}

	var buf bytes.Buffer
	err := docsPage.Execute(&buf, struct {
		Title         string
		SpecURL       string
		Configuration any
	}{title, specURL, configJSON(cfg)})
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			http.Error(w, "docs unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	})
}

func configJSON(cfg scalarConfig) string {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "{}"
	}
	return string(b)
}
