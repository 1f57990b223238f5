package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/homewizard"
	"github.com/HerbHall/homewatt/internal/telemetry"
)

// IdentityProber fetches a device self-description from an IP address.
// *homewizard.Client satisfies this.
type IdentityProber interface {
	Identify(ctx context.Context, address string) (*homewizard.Identity, error)
}

// Registrar records an identified device in the registry.
// *discovery.Sweeper satisfies this.
type Registrar interface {
	Register(ctx context.Context, address string, ident *homewizard.Identity) (created bool, err error)
}

// API serves the device and dashboard REST endpoints.
type API struct {
	devices   *device.Store
	readings  *telemetry.Store
	dash      *dashboard.Aggregator
	prober    IdentityProber
	registrar Registrar
	logger    *zap.Logger

	// identifyTimeout bounds the probe of a manually added address.
	identifyTimeout time.Duration
}

// NewAPI creates the REST API handler set.
func NewAPI(devices *device.Store, readings *telemetry.Store, dash *dashboard.Aggregator, prober IdentityProber, registrar Registrar, logger *zap.Logger) *API {
	return &API{
		devices:         devices,
		readings:        readings,
		dash:            dash,
		prober:          prober,
		registrar:       registrar,
		logger:          logger,
		identifyTimeout: 5 * time.Second,
	}
}

// RegisterRoutes attaches the API endpoints to the mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/devices", a.handleListDevices)
	mux.HandleFunc("POST /api/v1/devices", a.handleAddDevice)
	mux.HandleFunc("GET /api/v1/devices/{serial}", a.handleGetDevice)
	mux.HandleFunc("PATCH /api/v1/devices/{serial}", a.handleUpdateDevice)
	mux.HandleFunc("DELETE /api/v1/devices/{serial}", a.handleDeleteDevice)
	mux.HandleFunc("GET /api/v1/devices/{serial}/readings", a.handleDeviceReadings)
	mux.HandleFunc("GET /api/v1/dashboard", a.handleDashboard)
}

// handleListDevices returns every known device, enabled or not.
func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.devices.List(r.Context())
	if err != nil {
		a.logger.Warn("failed to list devices", zap.Error(err))
		InternalError(w, "failed to list devices", r.URL.Path)
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// addDeviceRequest is the body of POST /api/v1/devices.
type addDeviceRequest struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// handleAddDevice probes an address supplied by the user and, when a
// HomeWizard device answers, registers it the same way a discovery sweep
// would. Addresses that do not answer map to 502, answers that are not a
// HomeWizard identity or a pollable product to 400, and already-known
// serials to 409.
func (a *API) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	if req.Address == "" {
		BadRequest(w, "address is required", r.URL.Path)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.identifyTimeout)
	defer cancel()

	ident, err := a.prober.Identify(ctx, req.Address)
	if err != nil {
		if errors.Is(err, homewizard.ErrUnreachable) {
			Unreachable(w, "no device answered at "+req.Address, r.URL.Path)
			return
		}
		BadRequest(w, "address did not return a HomeWizard identity", r.URL.Path)
		return
	}
	if !ident.ProductType.Supported() {
		BadRequest(w, "product type "+ident.ProductType.String()+" cannot be polled", r.URL.Path)
		return
	}

	existing, err := a.devices.Get(r.Context(), ident.Serial)
	if err != nil {
		a.logger.Warn("failed to look up device", zap.String("serial", ident.Serial), zap.Error(err))
		InternalError(w, "failed to look up device", r.URL.Path)
		return
	}
	if existing != nil {
		Conflict(w, "device "+ident.Serial+" is already registered", r.URL.Path)
		return
	}

	if _, err := a.registrar.Register(r.Context(), req.Address, ident); err != nil {
		a.logger.Warn("failed to register device", zap.String("serial", ident.Serial), zap.Error(err))
		InternalError(w, "failed to register device", r.URL.Path)
		return
	}
	if req.Name != "" {
		if err := a.devices.SetName(r.Context(), ident.Serial, req.Name); err != nil {
			a.logger.Warn("failed to name device", zap.String("serial", ident.Serial), zap.Error(err))
			InternalError(w, "failed to name device", r.URL.Path)
			return
		}
	}

	stored, err := a.devices.Get(r.Context(), ident.Serial)
	if err != nil || stored == nil {
		a.logger.Warn("failed to load registered device", zap.String("serial", ident.Serial), zap.Error(err))
		InternalError(w, "failed to load registered device", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (a *API) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	d, err := a.devices.Get(r.Context(), serial)
	if err != nil {
		a.logger.Warn("failed to get device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to get device", r.URL.Path)
		return
	}
	if d == nil {
		NotFound(w, "device not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// updateDeviceRequest is the body of PATCH /api/v1/devices/{serial}.
// Absent fields are left unchanged.
type updateDeviceRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
}

func (a *API) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	if req.Name == nil && req.Enabled == nil {
		BadRequest(w, "nothing to update", r.URL.Path)
		return
	}

	d, err := a.devices.Get(r.Context(), serial)
	if err != nil {
		a.logger.Warn("failed to get device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to get device", r.URL.Path)
		return
	}
	if d == nil {
		NotFound(w, "device not found", r.URL.Path)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, "name must not be empty", r.URL.Path)
			return
		}
		if err := a.devices.SetName(r.Context(), serial, *req.Name); err != nil {
			a.logger.Warn("failed to rename device", zap.String("serial", serial), zap.Error(err))
			InternalError(w, "failed to rename device", r.URL.Path)
			return
		}
	}
	if req.Enabled != nil {
		if err := a.devices.SetEnabled(r.Context(), serial, *req.Enabled); err != nil {
			a.logger.Warn("failed to toggle device", zap.String("serial", serial), zap.Error(err))
			InternalError(w, "failed to update device", r.URL.Path)
			return
		}
	}

	updated, err := a.devices.Get(r.Context(), serial)
	if err != nil || updated == nil {
		a.logger.Warn("failed to reload device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to reload device", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	d, err := a.devices.Get(r.Context(), serial)
	if err != nil {
		a.logger.Warn("failed to get device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to get device", r.URL.Path)
		return
	}
	if d == nil {
		NotFound(w, "device not found", r.URL.Path)
		return
	}

	if err := a.devices.Delete(r.Context(), serial); err != nil {
		a.logger.Warn("failed to delete device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to delete device", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceReadings returns recent readings for a device, newest first.
// The window defaults to the last hour; ?minutes widens or narrows it and
// ?limit caps the result set.
func (a *API) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	d, err := a.devices.Get(r.Context(), serial)
	if err != nil {
		a.logger.Warn("failed to get device", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to get device", r.URL.Path)
		return
	}
	if d == nil {
		NotFound(w, "device not found", r.URL.Path)
		return
	}

	window := time.Hour
	if s := r.URL.Query().Get("minutes"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 7*24*60 {
			BadRequest(w, "minutes must be a positive integer up to one week", r.URL.Path)
			return
		}
		window = time.Duration(n) * time.Minute
	}
	since := time.Now().Add(-window)
	limit := parseLimit(r, 100)

	readings, err := a.readings.ListSince(r.Context(), serial, since, limit)
	if err != nil {
		a.logger.Warn("failed to list readings", zap.String("serial", serial), zap.Error(err))
		InternalError(w, "failed to list readings", r.URL.Path)
		return
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleDashboard builds a snapshot on demand rather than returning the
// last broadcast one, so the HTTP view is never staler than its readings.
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := a.dash.Build(r.Context())
	if err != nil {
		a.logger.Warn("failed to build dashboard", zap.Error(err))
		InternalError(w, "failed to build dashboard", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
