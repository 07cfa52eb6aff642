package main

import (
	"database/sql"
	"fmt"
	"net/http"
)

type productType struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Coefficient *float64 `json:"coefficient"`
}

type materialType struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	LossPercent *float64 `json:"loss_percent"`
}

func (s *server) handleProductTypesList(w http.ResponseWriter, r *http.Request) {
	items, err := s.listProductTypes()
	if err != nil {
		writeServerError(w, "failed to load product types", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) handleMaterialTypesList(w http.ResponseWriter, r *http.Request) {
	items, err := s.listMaterialTypes()
	if err != nil {
		writeServerError(w, "failed to load material types", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) listProductTypes() ([]productType, error) {
	rows, err := s.db.Query(`SELECT id, name, coefficient FROM product_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query product types: %w", err)
	}
	defer rows.Close()

	items := make([]productType, 0)
	for rows.Next() {
		var pt productType
		var coefficient sql.NullFloat64
		if err := rows.Scan(&pt.ID, &pt.Name, &coefficient); err != nil {
			return nil, fmt.Errorf("scan product type: %w", err)
		}
		pt.Coefficient = nullFloatPtr(coefficient)
		items = append(items, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product types: %w", err)
	}

	return items, nil
}

func (s *server) listMaterialTypes() ([]materialType, error) {
	rows, err := s.db.Query(`SELECT id, name, loss_percent FROM material_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query material types: %w", err)
	}
	defer rows.Close()

	items := make([]materialType, 0)
	for rows.Next() {
		var mt materialType
		var loss sql.NullFloat64
		if err := rows.Scan(&mt.ID, &mt.Name, &loss); err != nil {
			return nil, fmt.Errorf("scan material type: %w", err)
		}
		mt.LossPercent = nullFloatPtr(loss)
		items = append(items, mt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate material types: %w", err)
	}

	return items, nil
}

func (s *server) rowExists(table string, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s %d existence: %w", table, id, err)
	}
	return exists, nil
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullIntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
