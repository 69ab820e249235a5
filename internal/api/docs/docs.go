// Package docs assembles the OpenAPI document served at /openapi.json from embedded
// YAML fragments: a base document, shared components, and one path file per resource.
package docs

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/clubroom/clubroom/internal/config"
)

//go:embed fragments/*.yaml fragments/paths/*.yaml
var fragmentsFS embed.FS

// Build merges the embedded fragments and injects the configured metadata into info.
func Build(meta config.ApiDocsConfig) (map[string]any, error) {
	return build(fragmentsFS, meta)
}

// JSON returns the assembled document encoded as JSON
func JSON(meta config.ApiDocsConfig) ([]byte, error) {
	doc, err := Build(meta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func build(fsys fs.FS, meta config.ApiDocsConfig) (map[string]any, error) {
	doc, err := readYAML(fsys, "fragments/base.yaml")
	if err != nil {
		return nil, err
	}

	components, err := readYAML(fsys, "fragments/components.yaml")
	if err != nil {
		return nil, err
	}
	doc["components"] = components

	pathFiles, err := fs.Glob(fsys, "fragments/paths/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list path fragments: %w", err)
	}
	sort.Strings(pathFiles)

	// Later fragments win on duplicate paths.
	paths := map[string]any{}
	for _, name := range pathFiles {
		fragment, err := readYAML(fsys, name)
		if err != nil {
			return nil, err
		}
		for path, item := range fragment {
			paths[path] = item
		}
	}
	doc["paths"] = paths

	injectInfo(doc, meta)
	return doc, nil
}

func readYAML(fsys fs.FS, name string) (map[string]any, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return out, nil
}

func injectInfo(doc map[string]any, meta config.ApiDocsConfig) {
	info, _ := doc["info"].(map[string]any)
	if info == nil {
		info = map[string]any{}
		doc["info"] = info
	}

	if meta.TermsOfService != "" {
		info["termsOfService"] = meta.TermsOfService
	}
	if meta.ContactName != "" || meta.ContactEmail != "" {
		contact, _ := info["contact"].(map[string]any)
		if contact == nil {
			contact = map[string]any{}
			info["contact"] = contact
		}
		if meta.ContactName != "" {
			contact["name"] = meta.ContactName
		}
		if meta.ContactEmail != "" {
			contact["email"] = meta.ContactEmail
		}
	}
	if meta.License != "" {
		info["license"] = map[string]any{"name": meta.License}
	}
}
