// Package openapi builds the OpenAPI 3.1 document for the orchestrator's
// fixed v1 surface. Unlike a gateway with dynamic backends, the route set
// here is known at compile time, so the document is assembled once per
// request from static definitions.
package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI document for the v1 API, rooted at baseURL.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Odoo Orchestrator API",
			Description: "Multi-tenant management and proxy API for Odoo instances.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}
	doc.Components.Schemas["SuccessResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
				"data":    &openapi3.SchemaRef{Value: &openapi3.Schema{}},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()

	addCollection(doc, "/api/v1/companies", "companyId", "company", "Companies")
	addCollection(doc, "/api/v1/projects", "projectId", "project", "Projects")
	addCollection(doc, "/api/v1/instances", "instanceId", "instance", "Instances")

	doc.Paths.Set("/api/v1/instances/{instanceId}/test", &openapi3.PathItem{
		Post: operation("testInstance", "Test connectivity and credentials of an Odoo instance",
			"Instances", withIDParam("instanceId")),
	})

	recordsPath := "/api/v1/instances/{instanceId}/models/{model}/records"
	doc.Paths.Set(recordsPath, &openapi3.PathItem{
		Get: operation("searchRecords", "Search records of an Odoo model",
			"Odoo", withIDParam("instanceId"), withParam("model", "path"),
			withParam("domain", "query"), withParam("fields", "query")),
		Post: operation("createRecord", "Create a record on an Odoo model",
			"Odoo", withIDParam("instanceId"), withParam("model", "path")),
		Put: operation("writeRecords", "Update records of an Odoo model",
			"Odoo", withIDParam("instanceId"), withParam("model", "path")),
		Delete: operation("deleteRecords", "Delete records of an Odoo model",
			"Odoo", withIDParam("instanceId"), withParam("model", "path"),
			withParam("ids", "query")),
	})

	doc.Paths.Set("/api/v1/system/admin/session", &openapi3.PathItem{
		Post:   operation("login", "Authenticate an admin and issue a session token", "System"),
		Delete: operation("logout", "End an admin session", "System"),
	})
	doc.Paths.Set("/api/v1/system/api-key", &openapi3.PathItem{
		Get:  operation("listAPIKeys", "List API keys", "System"),
		Post: operation("createAPIKey", "Issue a new API key", "System"),
	})
	doc.Paths.Set("/api/v1/system/api-key/{keyId}", &openapi3.PathItem{
		Get:    operation("getAPIKey", "Get an API key record", "System", withIDParam("keyId")),
		Delete: operation("revokeAPIKey", "Revoke or hard-delete an API key", "System", withIDParam("keyId")),
	})

	return doc
}

// addCollection registers the standard list/create and get/update/delete
// paths for one resource collection.
func addCollection(doc *openapi3.T, base, idParam, singular, tag string) {
	doc.Paths.Set(base, &openapi3.PathItem{
		Get:  operation("list"+tag, fmt.Sprintf("List %ss visible to the caller", singular), tag),
		Post: operation("create"+tag, fmt.Sprintf("Create a %s", singular), tag),
	})
	doc.Paths.Set(base+"/{"+idParam+"}", &openapi3.PathItem{
		Get:    operation("get"+tag, fmt.Sprintf("Get a %s", singular), tag, withIDParam(idParam)),
		Put:    operation("update"+tag, fmt.Sprintf("Update a %s", singular), tag, withIDParam(idParam)),
		Delete: operation("delete"+tag, fmt.Sprintf("Delete a %s", singular), tag, withIDParam(idParam)),
	})
}

type opOption func(*openapi3.Operation)

func operation(id, summary, tag string, opts ...opOption) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}

	op.Responses = openapi3.NewResponses()
	op.Responses.Set("200", jsonResponse("Success", "#/components/schemas/SuccessResponse"))
	op.Responses.Set("401", jsonResponse("Missing, invalid, revoked, or expired credentials", "#/components/schemas/ErrorResponse"))
	op.Responses.Set("404", jsonResponse("Not found", "#/components/schemas/ErrorResponse"))
	op.Responses.Set("429", jsonResponse("Rate limit exceeded", "#/components/schemas/ErrorResponse"))

	for _, opt := range opts {
		opt(op)
	}
	return op
}

func withIDParam(name string) opOption {
	return func(op *openapi3.Operation) {
		p := openapi3.NewPathParameter(name)
		p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}
}

func withParam(name, in string) opOption {
	return func(op *openapi3.Operation) {
		var p *openapi3.Parameter
		if in == "path" {
			p = openapi3.NewPathParameter(name)
		} else {
			p = openapi3.NewQueryParameter(name)
		}
		p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}
}

func jsonResponse(description, schemaRef string) *openapi3.ResponseRef {
	desc := description
	return &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Ref: schemaRef},
				},
			},
		},
	}
}
