package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warecover/backend/internal/db"
	"github.com/warecover/backend/internal/engine"
	"github.com/warecover/backend/internal/models"
)

type Handler struct {
	Store        *db.Store
	Validator    *validator.Validate
	Logger       zerolog.Logger
	AdminKey     string
	NameConflict engine.NameConflictPolicy
	DefaultTopN  int
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Upload a speeds table
// @Description Upload a CSV describing warehouse-to-region delivery times in one of the three supported layouts
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param sid path string true "Session id"
// @Param file formData file true "speeds.csv"
// @Param format query string false "Force layout: long, priority_wide or wide_matrix"
// @Param region_column query string false "Region column header for the wide layouts"
// @Success 200 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/sessions/{sid}/speeds [post]
func (h *Handler) UploadSpeeds(c *gin.Context) {
	sessionID := c.Param("sid")
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	if !validateExt(file.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .csv", nil)
		return
	}
	table, err := readCSVTable(file)
	if err != nil {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "failed to read CSV", err.Error())
		return
	}

	regionHint := c.Query("region_column")
	var det engine.Detection
	if forced := c.Query("format"); forced != "" {
		det = engine.ForceFormat(table, engine.Format(forced), regionHint)
	} else {
		det = engine.DetectFormat(table, regionHint)
	}
	if det.Format == engine.FormatUnknown {
		writeError(c, http.StatusUnprocessableEntity, det.ReasonCode, det.ReasonText, gin.H{
			"preview": det.Preview,
		})
		return
	}

	res, err := engine.BuildMatrix(det, table, engine.BuildOptions{NameConflict: h.NameConflict})
	if err != nil {
		if errors.Is(err, engine.ErrEmptyMatrix) {
			writeError(c, http.StatusUnprocessableEntity, "HARD_PARSE_FAILURE", "no valid matrix entries in file", gin.H{
				"problem_cells": res.Problems,
			})
			return
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "cannot build matrix", err.Error())
		return
	}

	if err := h.Store.ReplaceSpeeds(c.Request.Context(), sessionID, res.Matrix); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to store matrix", err.Error())
		return
	}
	upload := models.Upload{
		SessionID:    sessionID,
		Kind:         "speeds",
		Filename:     file.Filename,
		Format:       string(det.Format),
		RowsParsed:   len(table) - 1,
		ProblemCells: len(res.Problems),
	}
	if err := h.Store.AddUpload(c.Request.Context(), upload); err != nil {
		h.Logger.Error().Err(err).Msg("failed to record upload")
	}

	c.JSON(http.StatusOK, gin.H{
		"format":        det.Format,
		"regions":       len(res.Matrix.Regions),
		"warehouses":    len(res.Matrix.Warehouses),
		"entries":       len(res.Matrix.Entries()),
		"problem_cells": res.Problems,
		"warnings":      res.Warnings,
	})
}

// @Summary Upload a sales table
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param sid path string true "Session id"
// @Param file formData file true "sales.csv with region_code and orders columns"
// @Success 200 {object} map[string]any
// @Router /api/sessions/{sid}/sales [post]
func (h *Handler) UploadSales(c *gin.Context) {
	sessionID := c.Param("sid")
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	if !validateExt(file.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .csv", nil)
		return
	}
	table, err := readCSVTable(file)
	if err != nil {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "failed to read CSV", err.Error())
		return
	}

	records, errs := parseSalesTable(table)
	if len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "sales validation errors", errs)
		return
	}
	if err := h.Store.ReplaceSales(c.Request.Context(), sessionID, records); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to store sales", err.Error())
		return
	}
	upload := models.Upload{
		SessionID:  sessionID,
		Kind:       "sales",
		Filename:   file.Filename,
		Format:     "sales",
		RowsParsed: len(records),
	}
	if err := h.Store.AddUpload(c.Request.Context(), upload); err != nil {
		h.Logger.Error().Err(err).Msg("failed to record upload")
	}
	c.JSON(http.StatusOK, gin.H{"records": len(records)})
}

func (h *Handler) WarehousesList(c *gin.Context) {
	items, err := h.Store.ListWarehouses(c.Request.Context(), c.Param("sid"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to list warehouses", err.Error())
		return
	}
	if len(items) == 0 {
		writeError(c, http.StatusNotFound, "NO_DATA", "no speeds uploaded for this session", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SetActiveRequest replaces the whole active set. The field must be
// present but may be empty: an empty list clears the set.
type SetActiveRequest struct {
	WarehouseIDs *[]string `json:"warehouse_ids" validate:"required"`
}

// @Summary Replace the active warehouse set
// @Tags active
// @Accept json
// @Produce json
// @Param sid path string true "Session id"
// @Success 200 {object} map[string]any
// @Router /api/sessions/{sid}/active [put]
func (h *Handler) SetActive(c *gin.Context) {
	sessionID := c.Param("sid")
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ids := *req.WarehouseIDs
	matrix, ok := h.loadMatrix(c, sessionID)
	if !ok {
		return
	}
	for _, id := range ids {
		if !matrix.HasWarehouse(id) {
			writeError(c, http.StatusUnprocessableEntity, "UNKNOWN_WAREHOUSE", "warehouse id not in matrix: "+id, nil)
			return
		}
	}
	if err := h.Store.SetActive(c.Request.Context(), sessionID, ids); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to set active warehouses", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": ids})
}

func (h *Handler) AddActive(c *gin.Context) {
	sessionID := c.Param("sid")
	warehouseID := c.Param("wid")

	matrix, ok := h.loadMatrix(c, sessionID)
	if !ok {
		return
	}
	if !matrix.HasWarehouse(warehouseID) {
		writeError(c, http.StatusUnprocessableEntity, "UNKNOWN_WAREHOUSE", "warehouse id not in matrix: "+warehouseID, nil)
		return
	}
	if err := h.Store.AddActive(c.Request.Context(), sessionID, warehouseID); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to add active warehouse", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": warehouseID})
}

func (h *Handler) RemoveActive(c *gin.Context) {
	sessionID := c.Param("sid")
	warehouseID := c.Param("wid")
	if err := h.Store.RemoveActive(c.Request.Context(), sessionID, warehouseID); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to remove active warehouse", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": warehouseID})
}

// @Summary Coverage report for the current active set
// @Tags coverage
// @Produce json
// @Param sid path string true "Session id"
// @Success 200 {object} map[string]any
// @Router /api/sessions/{sid}/report [get]
func (h *Handler) Report(c *gin.Context) {
	sessionID := c.Param("sid")
	matrix, weights, active, ok := h.loadSession(c, sessionID)
	if !ok {
		return
	}

	res, err := engine.ComputeCoverage(matrix, weights, active)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "UNKNOWN_WAREHOUSE", "active set invalid", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":   active,
		"coverage": coverageView(res),
	})
}

// @Summary Recommend the next warehouses to activate
// @Tags coverage
// @Produce json
// @Param sid path string true "Session id"
// @Param n query int false "Number of candidates, default from config"
// @Success 200 {object} map[string]any
// @Router /api/sessions/{sid}/recommendations [get]
func (h *Handler) Recommendations(c *gin.Context) {
	sessionID := c.Param("sid")
	matrix, weights, active, ok := h.loadSession(c, sessionID)
	if !ok {
		return
	}

	n, _ := strconv.Atoi(c.DefaultQuery("n", strconv.Itoa(h.DefaultTopN)))
	recs, err := engine.RecommendNext(matrix, weights, active, n)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "UNKNOWN_WAREHOUSE", "active set invalid", err.Error())
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"reason_code": "NO_CANDIDATES",
			"message":     "every known warehouse is already active",
			"candidates":  []any{},
		})
		return
	}

	views := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		views = append(views, candidateView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"candidates": views})
}

// @Summary Simulate adding one warehouse
// @Tags coverage
// @Produce json
// @Param sid path string true "Session id"
// @Param wid path string true "Warehouse id"
// @Success 200 {object} map[string]any
// @Router /api/sessions/{sid}/simulate/{wid} [get]
func (h *Handler) Simulate(c *gin.Context) {
	sessionID := c.Param("sid")
	matrix, weights, active, ok := h.loadSession(c, sessionID)
	if !ok {
		return
	}

	sim, err := engine.SimulateAdd(matrix, weights, active, c.Param("wid"))
	if err != nil {
		if errors.Is(err, engine.ErrUnknownWarehouse) {
			writeError(c, http.StatusNotFound, "UNKNOWN_WAREHOUSE", "warehouse id not in matrix", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "simulation failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"warehouse_id":   sim.WarehouseID,
		"warehouse_name": sim.WarehouseName,
		"already_active": sim.AlreadyActive,
		"before":         coverageView(sim.Before),
		"after":          coverageView(sim.After),
		"region_changes": deltaViews(sim.RegionChanges),
	})
}

func (h *Handler) Export(c *gin.Context) {
	sessionID := c.Param("sid")
	matrix, ok := h.loadMatrix(c, sessionID)
	if !ok {
		return
	}
	sales, err := h.Store.SalesRecords(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to load sales", err.Error())
		return
	}
	active, err := h.Store.ActiveIDs(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to load active set", err.Error())
		return
	}

	orders := map[string]float64{}
	for _, rec := range sales {
		orders[rec.RegionCode] += rec.Orders
	}
	activeSet := map[string]bool{}
	for _, id := range active {
		activeSet[id] = true
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"region_code", "region_name", "warehouse_id", "warehouse_name", "time_hours", "orders", "is_active"})
	for _, e := range matrix.Entries() {
		ordersVal := ""
		if v, ok := orders[e.RegionCode]; ok {
			ordersVal = strconv.FormatFloat(v, 'f', -1, 64)
		}
		isActive := "0"
		if activeSet[e.WarehouseID] {
			isActive = "1"
		}
		_ = w.Write([]string{
			e.RegionCode,
			matrix.Regions[e.RegionCode],
			e.WarehouseID,
			matrix.Warehouses[e.WarehouseID],
			strconv.FormatFloat(e.TimeHours, 'f', -1, 64),
			ordersVal,
			isActive,
		})
	}
	w.Flush()

	c.Header("Content-Disposition", `attachment; filename="report_export.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(buf.String()))
}

func (h *Handler) UploadsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.Store.ListUploads(c.Request.Context(), c.Param("sid"), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to list uploads", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// loadSession materializes the per-session inputs the engine needs:
// matrix, weights and the caller-owned active set.
func (h *Handler) loadSession(c *gin.Context, sessionID string) (*models.SpeedMatrix, map[string]float64, []string, bool) {
	matrix, ok := h.loadMatrix(c, sessionID)
	if !ok {
		return nil, nil, nil, false
	}
	sales, err := h.Store.SalesRecords(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to load sales", err.Error())
		return nil, nil, nil, false
	}
	weights, warnings := engine.LoadWeights(sales, matrix.RegionCodes())
	for _, warn := range warnings {
		h.Logger.Warn().Str("session_id", sessionID).Msg(warn)
	}
	active, err := h.Store.ActiveIDs(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to load active set", err.Error())
		return nil, nil, nil, false
	}
	return matrix, weights, active, true
}

func (h *Handler) loadMatrix(c *gin.Context, sessionID string) (*models.SpeedMatrix, bool) {
	has, err := h.Store.HasSpeeds(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to check session data", err.Error())
		return nil, false
	}
	if !has {
		writeError(c, http.StatusNotFound, "NO_DATA", "no speeds uploaded for this session", nil)
		return nil, false
	}
	matrix, err := h.Store.LoadMatrix(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "failed to load matrix", err.Error())
		return nil, false
	}
	return matrix, true
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func readCSVTable(file *multipart.FileHeader) ([][]string, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var table [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		table = append(table, rec)
	}
	return table, nil
}

func parseSalesTable(table [][]string) ([]models.SalesRecord, []string) {
	if len(table) == 0 {
		return nil, []string{"sales file is empty"}
	}
	codeCol, ordersCol := -1, -1
	for i, head := range table[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(head, "\ufeff"))) {
		case "region_code":
			codeCol = i
		case "orders":
			ordersCol = i
		}
	}
	if codeCol < 0 || ordersCol < 0 {
		return nil, []string{"sales file must have region_code and orders columns"}
	}

	var errs []string
	var out []models.SalesRecord
	for i, row := range table[1:] {
		rowNum := i + 2
		if codeCol >= len(row) || ordersCol >= len(row) {
			errs = append(errs, fmt.Sprintf("row %d: missing cells", rowNum))
			continue
		}
		code := strings.TrimSpace(row[codeCol])
		if code == "" {
			errs = append(errs, fmt.Sprintf("row %d: region_code is required", rowNum))
			continue
		}
		orders, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[ordersCol]), ",", "."), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("row %d: orders must be a number", rowNum))
			continue
		}
		if orders < 0 {
			errs = append(errs, fmt.Sprintf("row %d: orders must be >= 0", rowNum))
			continue
		}
		out = append(out, models.SalesRecord{RegionCode: code, Orders: orders})
	}
	if len(out) == 0 && len(errs) == 0 {
		errs = append(errs, "sales file has no data rows")
	}
	return out, errs
}

func validateExt(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".csv"
}

// fmtHours renders a possibly infinite time for JSON output.
func fmtHours(t float64) string {
	if math.IsInf(t, 1) {
		return "∞"
	}
	return strconv.FormatFloat(t, 'f', 2, 64)
}

func coverageView(res models.CoverageResult) gin.H {
	regions := make([]gin.H, 0, len(res.PerRegion))
	for _, reg := range res.PerRegion {
		regions = append(regions, gin.H{
			"region_code": reg.RegionCode,
			"region_name": reg.RegionName,
			"best_time":   fmtHours(reg.BestTime),
			"speed":       reg.Speed,
			"weight":      reg.Weight,
			"reachable":   !math.IsInf(reg.BestTime, 1),
		})
	}
	view := gin.H{
		"global_speed":         res.GlobalSpeed,
		"global_speed_optimal": res.GlobalSpeedOptimal,
		"weighted_avg_time":    fmtHours(res.WeightedAvgTime),
		"per_region":           regions,
	}
	if res.CoverageDefined {
		view["coverage"] = res.Coverage
	} else {
		view["coverage"] = nil
	}
	return view
}

func candidateView(rec engine.Candidate) gin.H {
	view := gin.H{
		"warehouse_id":   rec.WarehouseID,
		"warehouse_name": rec.WarehouseName,
		"delta_abs":      rec.DeltaAbs,
		"coverage":       coverageView(rec.Result),
		"region_changes": deltaViews(rec.RegionChanges),
	}
	if rec.DeltaPctDefined {
		view["delta_pct"] = rec.DeltaPct
	} else {
		view["delta_pct"] = nil
	}
	return view
}

func deltaViews(changes []models.RegionDelta) []gin.H {
	out := make([]gin.H, 0, len(changes))
	for _, ch := range changes {
		out = append(out, gin.H{
			"region_code": ch.RegionCode,
			"region_name": ch.RegionName,
			"weight":      ch.Weight,
			"old_time":    fmtHours(ch.OldTime),
			"new_time":    fmtHours(ch.NewTime),
		})
	}
	return out
}
