package handlers

import (
	"encoding/json"
	"net/http"
)

func pathParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

func jsonOperation(summary, description string, params ...map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
		"responses": map[string]interface{}{
			"200": map[string]interface{}{
				"description": "Successful response",
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": map[string]string{"type": "object"},
					},
				},
			},
			"404": map[string]interface{}{"description": "Resource not found"},
			"500": map[string]interface{}{"description": "Internal server error"},
		},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Kape Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Kape Platform API",
			"description": "Coffee farm yield analytics, risk classification and agronomic recommendations",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Kape Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/admin/analytics": map[string]interface{}{
				"get": jsonOperation("Portfolio analytics",
					"Totals, seasonal yield trends, enriched clusters, grade distribution, farm summaries and yield status counts across every farm"),
			},
			"/api/admin/attention": map[string]interface{}{
				"get": jsonOperation("Clusters needing attention",
					"Clusters at High or Critical risk, ordered by priority, then yield decline, then name"),
			},
			"/api/farms/{farmID}/analytics": map[string]interface{}{
				"get": jsonOperation("Farm analytics", "Analytics restricted to one farm's clusters",
					pathParam("farmID", "Farm ID")),
			},
			"/api/users/{userID}/analytics": map[string]interface{}{
				"get": jsonOperation("Farmer analytics", "Analytics for the farm owned by a farmer; 404 when the user has no farm",
					pathParam("userID", "User ID")),
			},
			"/api/clusters/{clusterID}/recommendations": map[string]interface{}{
				"get": jsonOperation("Cluster recommendations",
					"Rule findings for the cluster's latest stage snapshot, high severity first, with the performance tier",
					pathParam("clusterID", "Cluster ID")),
			},
			"/api/harvest-estimate": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Estimate harvest date",
					"description": "Projects the harvest date from a flowering date; readings left blank are taken from the cluster when cluster_id is given",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":     "object",
									"required": []string{"flowering_date"},
									"properties": map[string]interface{}{
										"cluster_id":         map[string]string{"type": "string"},
										"flowering_date":     map[string]string{"type": "string", "format": "date"},
										"avg_temp_c":         map[string]string{"type": "number"},
										"elevation_m":        map[string]string{"type": "number"},
										"shade_tree_present": map[string]string{"type": "boolean"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Harvest estimate"},
						"400": map[string]interface{}{"description": "Invalid request body"},
					},
				},
			},
			"/api/export/{report}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Download a report",
					"description": "Renders a report as CSV or XLSX",
					"parameters": []map[string]interface{}{
						{
							"name":     "report",
							"in":       "path",
							"required": true,
							"schema": map[string]interface{}{
								"type": "string",
								"enum": []string{"portfolio-trends", "farm-trends", "kpi", "farm-predictions", "recommendations"},
							},
						},
						{
							"name":        "format",
							"in":          "query",
							"description": "File format (default from configuration)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "string", "enum": []string{"csv", "xlsx"}},
						},
						{
							"name":        "farm_id",
							"in":          "query",
							"description": "Farm ID; required for farm-trends",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "File download"},
						"400": map[string]interface{}{"description": "Unknown report or format"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Reports API and database health",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service is healthy"},
						"503": map[string]interface{}{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
