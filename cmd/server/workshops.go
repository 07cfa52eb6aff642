package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const duplicateWorkshopName = "A workshop with this name already exists. Enter a different name."

type workshop struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	WorkshopType *string `json:"workshop_type"`
	WorkersCount *int64  `json:"workers_count"`
}

func (s *server) handleWorkshopsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT id, name, workshop_type, workers_count FROM workshop ORDER BY name`)
	if err != nil {
		writeServerError(w, "failed to load workshops", err)
		return
	}
	defer rows.Close()

	workshops := make([]workshop, 0)
	for rows.Next() {
		ws, err := scanWorkshop(rows)
		if err != nil {
			writeServerError(w, "failed to load workshops", err)
			return
		}
		workshops = append(workshops, ws)
	}
	if err := rows.Err(); err != nil {
		writeServerError(w, "failed to load workshops", err)
		return
	}

	writeJSON(w, http.StatusOK, workshops)
}

func (s *server) handleWorkshopsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ws, err := s.getWorkshop(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load workshop", err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *server) handleWorkshopsCreate(w http.ResponseWriter, r *http.Request) {
	var payload workshop
	if !decodeOrReject(w, r, &payload) {
		return
	}
	if errs := validateWorkshop(&payload); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO workshop (name, workshop_type, workers_count)
		VALUES (?, ?, ?)
	`, payload.Name, payload.WorkshopType, payload.WorkersCount)
	if isUniqueViolation(err) {
		writeValidation(w, fieldErrors{"name": duplicateWorkshopName})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create workshop", err)
		return
	}

	id, err := result.LastInsertId()
	if err != nil {
		writeServerError(w, "failed to create workshop", err)
		return
	}
	payload.ID = id
	writeJSON(w, http.StatusCreated, payload)
}

func (s *server) handleWorkshopsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var payload workshop
	if !decodeOrReject(w, r, &payload) {
		return
	}
	if errs := validateWorkshop(&payload); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE workshop
		SET name = ?, workshop_type = ?, workers_count = ?
		WHERE id = ?
	`, payload.Name, payload.WorkshopType, payload.WorkersCount, id)
	if isUniqueViolation(err) {
		writeValidation(w, fieldErrors{"name": duplicateWorkshopName})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update workshop", err)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		writeServerError(w, "failed to update workshop", err)
		return
	}
	if affected == 0 {
		writeNotFound(w)
		return
	}

	payload.ID = id
	writeJSON(w, http.StatusOK, payload)
}

// handleWorkshopsDelete removes the workshop and every product link to it.
func (s *server) handleWorkshopsDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		writeServerError(w, "failed to delete workshop", err)
		return
	}

	if _, err := tx.Exec(`DELETE FROM product_workshop WHERE workshop_id = ?`, id); err != nil {
		_ = tx.Rollback()
		writeServerError(w, "failed to delete workshop", err)
		return
	}

	result, err := tx.Exec(`DELETE FROM workshop WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		writeServerError(w, "failed to delete workshop", err)
		return
	}
	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		_ = tx.Rollback()
		if err != nil {
			writeServerError(w, "failed to delete workshop", err)
			return
		}
		writeNotFound(w)
		return
	}

	if err := tx.Commit(); err != nil {
		writeServerError(w, "failed to delete workshop", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateWorkshop(ws *workshop) fieldErrors {
	errs := fieldErrors{}

	ws.Name = strings.TrimSpace(ws.Name)
	if ws.Name == "" {
		errs.add("name", "This field is required.")
	}
	if ws.WorkshopType != nil {
		trimmed := strings.TrimSpace(*ws.WorkshopType)
		ws.WorkshopType = &trimmed
	}
	if ws.WorkersCount != nil && *ws.WorkersCount < 0 {
		errs.add("workers_count", "Ensure this value is greater than or equal to 0.")
	}

	return errs
}

func (s *server) getWorkshop(id int64) (workshop, error) {
	return scanWorkshop(s.db.QueryRow(`SELECT id, name, workshop_type, workers_count FROM workshop WHERE id = ?`, id))
}

func scanWorkshop(row rowScanner) (workshop, error) {
	var (
		ws          workshop
		workshopTyp sql.NullString
		workers     sql.NullInt64
	)
	if err := row.Scan(&ws.ID, &ws.Name, &workshopTyp, &workers); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workshop{}, err
		}
		return workshop{}, fmt.Errorf("scan workshop: %w", err)
	}
	ws.WorkshopType = nullStringPtr(workshopTyp)
	ws.WorkersCount = nullIntPtr(workers)
	return ws, nil
}
