package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Renderer turns a metadata document into one target-specific artifact via a
// template. The narrow seam keeps the pipeline independent of the engine.
type Renderer interface {
	Render(docPath, templatePath string) ([]byte, error)
}

// TemplateRenderer renders with text/template; the document decodes to a
// generic map that the template navigates directly.
type TemplateRenderer struct {
	// Funcs extends the function map available to all templates.
	Funcs template.FuncMap
}

func (r TemplateRenderer) Render(docPath, templatePath string) ([]byte, error) {
	data, err := os.ReadFile(docPath)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docPath, err)
	}

	tmpl := template.New(filepath.Base(templatePath))
	if r.Funcs != nil {
		tmpl = tmpl.Funcs(r.Funcs)
	}
	tmpl, err = tmpl.ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", templatePath, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render %s with %s: %w", docPath, templatePath, err)
	}
	return buf.Bytes(), nil
}
