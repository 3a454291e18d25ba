package handlers

import (
	"encoding/json"
	"net/http"
)

type schema = map[string]interface{}

func jsonResponse(description string, body schema) schema {
	return schema{
		"description": description,
		"content": schema{
			"application/json": schema{"schema": body},
		},
	}
}

func dateParam(name, description string) schema {
	return schema{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      schema{"type": "string", "format": "date"},
	}
}

var nullableNumber = schema{"type": "number", "nullable": true}

var errorSchema = schema{
	"type": "object",
	"properties": schema{
		"error":   schema{"type": "string"},
		"message": schema{"type": "string"},
		"code":    schema{"type": "integer"},
	},
}

var temperatureStatsSchema = schema{
	"type": "object",
	"properties": schema{
		"TMIN": nullableNumber,
		"TAVG": nullableNumber,
		"TMAX": nullableNumber,
	},
}

// openAPIDocument describes the climate API in OpenAPI 3.0 form
func openAPIDocument() schema {
	serverError := jsonResponse("Query failed or the dataset is empty", errorSchema)

	return schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       "Climate API",
			"description": "Read-only precipitation and temperature observations from the Hawaii climate dataset",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:5000", "description": "Local development server"},
		},
		"paths": schema{
			routePrecipitation: schema{
				"get": schema{
					"summary":     "Precipitation for the last 12 months",
					"description": "Date to precipitation for the 365 days ending on the dataset's last date. Duplicate dates keep the last row read.",
					"responses": schema{
						"200": jsonResponse("Date to precipitation", schema{
							"type":                 "object",
							"additionalProperties": nullableNumber,
						}),
						"500": serverError,
					},
				},
			},
			routeStations: schema{
				"get": schema{
					"summary": "List weather stations",
					"responses": schema{
						"200": jsonResponse("All stations", schema{
							"type": "array",
							"items": schema{
								"type": "object",
								"properties": schema{
									"station": schema{"type": "string"},
									"name":    schema{"type": "string"},
								},
							},
						}),
						"500": serverError,
					},
				},
			},
			routeTobs: schema{
				"get": schema{
					"summary":     "Temperature observations of the most active station",
					"description": "Last 12 months of observations for the station with the most measurements; ties go to the smallest station id.",
					"responses": schema{
						"200": jsonResponse("Observations", schema{
							"type": "array",
							"items": schema{
								"type": "object",
								"properties": schema{
									"date": schema{"type": "string", "format": "date"},
									"tobs": nullableNumber,
								},
							},
						}),
						"500": serverError,
					},
				},
			},
			routeStart: schema{
				"get": schema{
					"summary":     "Temperature statistics from a start date",
					"description": "TMIN, TAVG and TMAX over measurements with date >= start. All null when nothing matches.",
					"parameters":  []schema{dateParam("start", "Start date (YYYY-MM-DD), compared as text")},
					"responses": schema{
						"200": jsonResponse("Temperature statistics", temperatureStatsSchema),
						"500": serverError,
					},
				},
			},
			routeStartEnd: schema{
				"get": schema{
					"summary":     "Temperature statistics for a date range",
					"description": "TMIN, TAVG and TMAX over measurements with start <= date <= end. All null when nothing matches.",
					"parameters": []schema{
						dateParam("start", "Start date (YYYY-MM-DD), inclusive"),
						dateParam("end", "End date (YYYY-MM-DD), inclusive"),
					},
					"responses": schema{
						"200": jsonResponse("Temperature statistics", temperatureStatsSchema),
						"500": serverError,
					},
				},
			},
			"/health": schema{
				"get": schema{
					"summary": "Health check",
					"responses": schema{
						"200": jsonResponse("Dataset reachable", schema{
							"type":       "object",
							"properties": schema{"status": schema{"type": "string"}},
						}),
						"503": jsonResponse("Dataset unreachable", schema{
							"type":       "object",
							"properties": schema{"status": schema{"type": "string"}},
						}),
					},
				},
			},
			"/metrics": schema{
				"get": schema{
					"summary": "Prometheus metrics",
					"responses": schema{
						"200": schema{
							"description": "Prometheus metrics in text format",
							"content": schema{
								"text/plain": schema{"schema": schema{"type": "string"}},
							},
						},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI 3.0 specification for the climate API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
