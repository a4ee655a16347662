// Package openapi generates the OpenAPI 3.0 document for the catalog API by
// reflecting on the registered resource models.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI document from registered resources.
type Generator struct {
	title       string
	version     string
	description string
	basePath    string
	servers     []string
	resources   []ResourceInfo
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Action is a verb exposed below an item path, e.g. "build" on
// /images/{ref}/build.
type Action struct {
	Name    string
	Summary string
	Methods []string
	Query   []string // query parameters the action reads
}

// ResourceInfo describes one resource collection.
type ResourceInfo struct {
	Name           string // path segment, e.g. "build-templates"
	Key            string // item path parameter, e.g. "ref"
	Model          any    // struct reflected into the component schema
	Request        any    // request body; Model is used when nil
	SupportsFind   bool   // GET collection and item
	SupportsCreate bool   // POST collection
	SupportsUpdate bool   // PUT item
	SupportsDelete bool   // DELETE item
	Actions        []Action
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) { g.title = title }
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) { g.version = version }
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) { g.description = description }
}

// WithBasePath sets the prefix of every resource path.
func WithBasePath(path string) Option {
	return func(g *Generator) { g.basePath = strings.TrimSuffix(path, "/") }
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) { g.servers = append(g.servers, url) }
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:   "Shipyard API",
		version: "1.0.0",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterResource adds a resource to the document.
func (g *Generator) RegisterResource(info ResourceInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.Key == "" {
		info.Key = "id"
	}
	g.resources = append(g.resources, info)
	g.cachedSpec = nil
}

// Generate builds the document. The result is cached until the next
// RegisterResource call.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Paths: &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	addCommonSchemas(spec)
	for _, res := range g.resources {
		g.addResourceToSpec(spec, res)
	}

	g.cachedSpec = spec
	return spec
}

// Handler serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

func addCommonSchemas(spec *openapi3.T) {
	spec.Components.Schemas["ListMeta"] = objectSchema(openapi3.Schemas{
		"total":  typed("integer"),
		"limit":  typed("integer"),
		"offset": typed("integer"),
	})

	spec.Components.Schemas["Error"] = objectSchema(openapi3.Schemas{
		"code":    typed("integer"),
		"message": typed("string"),
		"error":   typed("string"),
		"output":  typed("string"),
		"data":    typed("object"),
	})
}

// addResourceToSpec adds the schemas and paths of one resource.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	basePath := g.basePath + "/" + res.Name
	schemaName := schemaName(res.Name)

	spec.Components.Schemas[schemaName] = extractSchema(res.Model)
	if res.Request != nil {
		spec.Components.Schemas[schemaName+"Request"] = extractSchema(res.Request)
	}

	spec.Components.Schemas[schemaName+"Response"] = envelopeSchema(componentRef(schemaName))
	spec.Components.Schemas[schemaName+"ListResponse"] = envelopeSchema(objectSchema(openapi3.Schemas{
		"items": {Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: componentRef(schemaName)}},
		"meta":  componentRef("ListMeta"),
	}))

	collection := &openapi3.PathItem{}
	if res.SupportsFind {
		collection.Get = g.listOperation(res, schemaName)
	}
	if res.SupportsCreate {
		collection.Post = g.bodyOperation("create"+schemaName, "Create "+article(res.Name), res, schemaName)
	}
	spec.Paths.Set(basePath, collection)

	itemPath := basePath + "/{" + res.Key + "}"
	item := &openapi3.PathItem{Parameters: openapi3.Parameters{pathParam(res.Key)}}
	if res.SupportsFind {
		item.Get = g.simpleOperation("get"+schemaName, "Get "+article(res.Name), res, schemaName+"Response")
	}
	if res.SupportsUpdate {
		item.Put = g.bodyOperation("update"+schemaName, "Update "+article(res.Name), res, schemaName)
	}
	if res.SupportsDelete {
		item.Delete = g.simpleOperation("delete"+schemaName, "Delete "+article(res.Name), res, "")
	}
	spec.Paths.Set(itemPath, item)

	for _, action := range res.Actions {
		pi := &openapi3.PathItem{Parameters: openapi3.Parameters{pathParam(res.Key)}}
		for _, method := range action.Methods {
			op := g.simpleOperation(action.Name+schemaName, action.Summary, res, "")
			for _, q := range action.Query {
				op.Parameters = append(op.Parameters, queryParam(q, &openapi3.Schema{Type: &openapi3.Types{"string"}}))
			}
			pi.SetOperation(method, op)
		}
		spec.Paths.Set(itemPath+"/"+action.Name, pi)
	}
}

// extractSchema reflects a struct into an object schema keyed by JSON names.
func extractSchema(model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return structSchema(t)
}

func structSchema(t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			name = parts[0]
		}

		if propSchema := goTypeToSchema(field.Type); propSchema != nil {
			schema.Properties[name] = propSchema
		}
		if strings.Contains(field.Tag.Get("validate"), "required") {
			schema.Required = append(schema.Required, name)
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return typed("string")

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typed("integer")

	case reflect.Float32, reflect.Float64:
		return typed("number")

	case reflect.Bool:
		return typed("boolean")

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: goTypeToSchema(t.Elem()),
		}}

	case reflect.Map:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: goTypeToSchema(t.Elem())},
		}}

	case reflect.Ptr:
		schema := goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
		}
		return structSchema(t)

	default:
		return typed("object")
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func (g *Generator) listOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	op := g.simpleOperation("list"+schemaName+"s", "List "+res.Name, res, schemaName+"ListResponse")
	op.Parameters = openapi3.Parameters{
		queryParam("limit", &openapi3.Schema{Type: &openapi3.Types{"integer"}, Default: 100}),
		queryParam("offset", &openapi3.Schema{Type: &openapi3.Types{"integer"}, Default: 0}),
	}
	return op
}

func (g *Generator) bodyOperation(id, summary string, res ResourceInfo, schemaName string) *openapi3.Operation {
	body := schemaName
	if res.Request != nil {
		body = schemaName + "Request"
	}

	op := g.simpleOperation(id, summary, res, schemaName+"Response")
	op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Required: true,
		Content:  openapi3.NewContentWithJSONSchemaRef(componentRef(body)),
	}}
	return op
}

// simpleOperation builds an operation whose success body is the named
// component, or a bare envelope when success is empty.
func (g *Generator) simpleOperation(id, summary string, res ResourceInfo, success string) *openapi3.Operation {
	ok := envelopeSchema(nil)
	if success != "" {
		ok = componentRef(success)
	}

	responses := openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription("Success").
			WithContent(openapi3.NewContentWithJSONSchemaRef(ok))}),
		openapi3.WithName("default", openapi3.NewResponse().
			WithDescription("Error").
			WithContent(openapi3.NewContentWithJSONSchemaRef(componentRef("Error")))),
	)

	return &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		Tags:        []string{schemaName(res.Name)},
		Responses:   responses,
	}
}

// =============================================================================
// Helpers
// =============================================================================

func typed(kind string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{kind}}}
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: props}}
}

func componentRef(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

// envelopeSchema wraps data in the {code, message, data} envelope.
func envelopeSchema(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	props := openapi3.Schemas{
		"code":    typed("integer"),
		"message": typed("string"),
	}
	if data != nil {
		props["data"] = data
	}
	s := objectSchema(props)
	s.Value.Required = []string{"code", "message"}
	return s
}

func pathParam(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: &openapi3.Parameter{
		Name:     name,
		In:       "path",
		Required: true,
		Schema:   typed("string"),
	}}
}

func queryParam(name string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: &openapi3.Parameter{
		Name:   name,
		In:     "query",
		Schema: &openapi3.SchemaRef{Value: schema},
	}}
}

// schemaName turns a plural kebab-case collection name into a singular
// PascalCase schema name: "build-templates" -> "BuildTemplate".
func schemaName(collection string) string {
	var b strings.Builder
	for _, part := range strings.Split(singularize(collection), "-") {
		b.WriteString(capitalize(part))
	}
	return b.String()
}

// article renders a collection name as "a build template".
func article(collection string) string {
	words := strings.ReplaceAll(singularize(collection), "-", " ")
	if strings.ContainsRune("aeiou", rune(words[0])) {
		return "an " + words
	}
	return "a " + words
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// singularize handles the regular English plurals used by collection names.
func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"), strings.HasSuffix(s, "xes"), strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss"):
		return s[:len(s)-1]
	}
	return s
}
