package swagger

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SpecPath is where the OpenAPI document is served from.
const SpecPath = "/openapi.yml"

// Handler serves the Swagger UI pointed at SpecPath.
func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(SpecPath),
	)
}

// Spec is a validated OpenAPI document together with its raw bytes.
type Spec struct {
	Doc *openapi3.T
	raw []byte
}

// LoadSpec reads and validates the OpenAPI document at path.
func LoadSpec(ctx context.Context, path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi spec: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	return &Spec{Doc: doc, raw: raw}, nil
}

func (s *Spec) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.raw)
}
