package api

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the status endpoints.
func buildOpenAPIDoc(secured bool) map[string]any {
	op := func(summary string, protected bool) map[string]any {
		o := map[string]any{
			"summary": summary,
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
				"503": map[string]any{"description": "Dispatcher did not answer"},
			},
		}
		if protected && secured {
			o["security"] = []any{map[string]any{"BearerAuth": []string{}}}
			o["responses"].(map[string]any)["401"] = map[string]any{"description": "Missing or invalid API key"}
		}
		return o
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "vitrine status",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz":  map[string]any{"get": op("Liveness and live surface count", false)},
			"/surfaces": map[string]any{"get": op("Snapshot of live surfaces", true)},
			"/events":   map[string]any{"get": op("Server-sent lifecycle notices", true)},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}
