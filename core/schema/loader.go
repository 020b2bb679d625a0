package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// Loader resolves a model name, optionally qualified by a namespace, to a raw
// schema document. Loaders return untrusted documents; the service runs them
// through validation and normalization before anything else sees them.
type Loader interface {
	Load(ctx context.Context, namespace, model string) (*SchemaDocument, error)
}

// modelNamePattern restricts model and namespace names to path-safe tokens.
// Anything else is rejected before it can influence file resolution.
var modelNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidModelName reports whether a model or namespace name can be safely
// resolved to a schema document location.
func ValidModelName(name string) bool {
	return modelNamePattern.MatchString(name)
}

// schemaExtensions lists recognized document formats in resolution order.
var schemaExtensions = []string{".json", ".yaml", ".yml"}

// FSLoader reads schema documents from a directory tree. A model "users"
// resolves to <root>/users.json (or .yaml/.yml); with a namespace "crm" it
// resolves to <root>/crm/users.json. One namespace per connection is the
// expected layout.
type FSLoader struct {
	root   string
	logger *zap.Logger
}

// NewFSLoader creates a loader rooted at the given directory.
func NewFSLoader(root string, logger *zap.Logger) *FSLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSLoader{root: root, logger: logger}
}

// Load reads and decodes the schema document for a model.
func (l *FSLoader) Load(ctx context.Context, namespace, model string) (*SchemaDocument, error) {
	if !ValidModelName(model) {
		return nil, &NotFoundError{Model: model, Namespace: namespace}
	}
	if namespace != "" && !ValidModelName(namespace) {
		return nil, &NotFoundError{Model: model, Namespace: namespace}
	}

	dir := l.root
	if namespace != "" {
		dir = filepath.Join(dir, namespace)
	}

	for _, ext := range schemaExtensions {
		path := filepath.Join(dir, model+ext)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}

		l.logger.Debug("Loaded schema document", zap.String("model", model), zap.String("path", path))
		doc, err := decodeDocument(raw, ext)
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema file %s: %w", path, err)
		}
		return doc, nil
	}

	return nil, &NotFoundError{Model: model, Namespace: namespace}
}

func decodeDocument(raw []byte, ext string) (*SchemaDocument, error) {
	var doc SchemaDocument
	switch ext {
	case ".yaml", ".yml":
		// goccy/go-yaml honors json struct tags, so one set of tags covers
		// both wire formats.
		if err := yaml.UnmarshalWithOptions(raw, &doc, yaml.UseJSONUnmarshaler()); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

// StaticLoader serves schema documents from memory, keyed by model name
// (namespace-qualified when a namespace is used). It exists for tests and for
// embedding fixed schemas.
type StaticLoader struct {
	docs map[string]*SchemaDocument
}

// NewStaticLoader creates a loader over a fixed set of documents keyed by
// model name.
func NewStaticLoader(docs map[string]*SchemaDocument) *StaticLoader {
	return &StaticLoader{docs: docs}
}

// Load returns a deep copy of the registered document so callers can
// normalize it without mutating the registry.
func (l *StaticLoader) Load(ctx context.Context, namespace, model string) (*SchemaDocument, error) {
	key := model
	if namespace != "" {
		key = namespace + "/" + model
	}
	doc, ok := l.docs[key]
	if !ok {
		return nil, &NotFoundError{Model: model, Namespace: namespace}
	}
	return doc.Clone()
}
