package handlers

import (
	"net/http"
)

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func nullableNumber() object {
	return object{"type": "number", "nullable": true}
}

var paginationParams = []object{
	queryParam("offset", "Rows to skip (default: 0)", object{"type": "integer", "minimum": 0, "default": 0}),
	queryParam("limit", "Rows per page (default: 100, max: 1000)", object{"type": "integer", "minimum": 1, "maximum": maxLimit, "default": defaultLimit}),
}

func withPagination(params ...object) []object {
	return append(params, paginationParams...)
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

func pageResponse(itemProps object) object {
	return object{
		"description": "Successful response",
		"content": jsonContent(object{
			"type": "object",
			"properties": object{
				"data":   object{"type": "array", "items": object{"type": "object", "properties": itemProps}},
				"total":  object{"type": "integer"},
				"offset": object{"type": "integer"},
				"limit":  object{"type": "integer"},
			},
		}),
	}
}

var errorResponse = object{
	"description": "Invalid query parameters",
	"content": jsonContent(object{
		"type": "object",
		"properties": object{
			"error":   object{"type": "string"},
			"message": object{"type": "string"},
			"code":    object{"type": "integer"},
		},
	}),
}

func openAPIDocument() object {
	stationParam := queryParam("station_id", "Filter by station code", object{"type": "string"})

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Weather Stats API",
			"description": "Daily station observations and yearly per-station aggregates",
			"version":     "1.0.0",
		},
		"paths": object{
			"/api/weather": object{
				"get": object{
					"summary": "List daily observations",
					"parameters": withPagination(
						stationParam,
						queryParam("date_from", "Earliest date, inclusive (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
						queryParam("date_to", "Latest date, inclusive (YYYY-MM-DD)", object{"type": "string", "format": "date"}),
					),
					"responses": object{
						"200": pageResponse(object{
							"station_code": object{"type": "string"},
							"date":         object{"type": "string", "format": "date"},
							"max_temp_c":   nullableNumber(),
							"min_temp_c":   nullableNumber(),
							"precip_cm":    nullableNumber(),
						}),
						"400": errorResponse,
					},
				},
			},
			"/api/weather/stats": object{
				"get": object{
					"summary": "List yearly statistics",
					"parameters": withPagination(
						stationParam,
						queryParam("year", "Filter by calendar year", object{"type": "integer"}),
					),
					"responses": object{
						"200": pageResponse(object{
							"station_code":    object{"type": "string"},
							"year":            object{"type": "integer"},
							"avg_max_temp_c":  nullableNumber(),
							"avg_min_temp_c":  nullableNumber(),
							"total_precip_cm": nullableNumber(),
						}),
						"400": errorResponse,
					},
				},
			},
			"/api/stations": object{
				"get": object{
					"summary":    "List known stations",
					"parameters": withPagination(),
					"responses": object{
						"200": pageResponse(object{
							"station_code": object{"type": "string"},
							"state":        object{"type": "string", "nullable": true},
							"name":         object{"type": "string", "nullable": true},
						}),
						"400": errorResponse,
					},
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": object{"description": "Store reachable"},
						"503": object{"description": "Store unreachable"},
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus text exposition",
							"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
						},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI 3.0 document for the query API
func (h *WeatherHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, r, openAPIDocument(), http.StatusOK)
}
