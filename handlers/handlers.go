package handlers

import (
	"net/http"

	"github.com/cryptohelms/backend/utils"
)

// endpointResponse is the placeholder body of the forecast and viz routes.
// The key keeps its trailing colon; the web client matches on it.
type endpointResponse struct {
	Endpoint string `json:"Endpoint:"`
}

// ForecastHandler handles GET /api/forecast/
func ForecastHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, endpointResponse{Endpoint: "/forecast"})
}

// VizHandler handles GET /api/viz/viz
func VizHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, endpointResponse{Endpoint: "/viz"})
}

// SampleRecord is one row of the placeholder dataset served at /api/dummy/
type SampleRecord struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	EmployeeID int    `json:"employee_id"`
}

var sampleRecords = []SampleRecord{
	{ID: 1, Name: "John", EmployeeID: 12345},
	{ID: 2, Name: "June", EmployeeID: 67890},
}

// DummyHandler handles GET /api/dummy/ until a market data source is wired
func DummyHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, sampleRecords)
}

// NotFoundHandler answers unknown routes with the JSON error shape
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "Not Found")
}

// MethodNotAllowedHandler answers known routes hit with the wrong method
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
}
