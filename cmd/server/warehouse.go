package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	defaultMaterialUnit = "шт"
	unknownMaterialType = "—"
	supplierInUse       = "Cannot delete the supplier: it is used by materials."
)

// money is a decimal amount serialized with exactly two decimal places.
type money struct {
	decimal.Decimal
}

func (m money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.StringFixed(2))
}

type supplier struct {
	ID           int64  `json:"id"`
	SupplierType string `json:"supplier_type"`
	Name         string `json:"name"`
	INN          string `json:"inn"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

type material struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	MaterialTypeID    int64  `json:"material_type_id"`
	MaterialType      string `json:"material_type"`
	SupplierID        int64  `json:"supplier"`
	SupplierName      string `json:"supplier_name"`
	Unit              string `json:"unit"`
	QuantityInPackage *int64 `json:"quantity_in_package"`
	Description       string `json:"description"`
	ImageURL          string `json:"image_url"`
	Cost              money  `json:"cost"`
	StockQuantity     int64  `json:"stock_quantity"`
	MinQuantity       int64  `json:"min_quantity"`
}

const supplierColumns = `id, supplier_type, name, inn, phone, email`

func scanSupplier(row rowScanner) (supplier, error) {
	var sp supplier
	if err := row.Scan(&sp.ID, &sp.SupplierType, &sp.Name, &sp.INN, &sp.Phone, &sp.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return supplier{}, err
		}
		return supplier{}, fmt.Errorf("scan supplier: %w", err)
	}
	return sp, nil
}

func validateSupplier(sp *supplier) fieldErrors {
	errs := fieldErrors{}

	sp.SupplierType = strings.TrimSpace(sp.SupplierType)
	sp.Name = strings.TrimSpace(sp.Name)
	sp.INN = strings.TrimSpace(sp.INN)
	sp.Email = strings.TrimSpace(sp.Email)

	if sp.SupplierType == "" {
		errs.add("supplier_type", "This field is required.")
	}
	if sp.Name == "" {
		errs.add("name", "This field is required.")
	}
	if utf8.RuneCountInString(sp.INN) > maxINNLength {
		errs.add("inn", fmt.Sprintf("Ensure this field has no more than %d characters.", maxINNLength))
	}
	if sp.Email != "" {
		if _, err := mail.ParseAddress(sp.Email); err != nil {
			errs.add("email", "Enter a valid email address.")
		}
	}

	return errs
}

func (s *server) handleSuppliersList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT ` + supplierColumns + ` FROM supplier ORDER BY name`)
	if err != nil {
		writeServerError(w, "failed to load suppliers", err)
		return
	}
	defer rows.Close()

	suppliers := make([]supplier, 0)
	for rows.Next() {
		sp, err := scanSupplier(rows)
		if err != nil {
			writeServerError(w, "failed to load suppliers", err)
			return
		}
		suppliers = append(suppliers, sp)
	}
	if err := rows.Err(); err != nil {
		writeServerError(w, "failed to load suppliers", err)
		return
	}

	writeJSON(w, http.StatusOK, suppliers)
}

func (s *server) handleSuppliersGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	sp, err := scanSupplier(s.db.QueryRow(`SELECT `+supplierColumns+` FROM supplier WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load supplier", err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *server) handleSuppliersCreate(w http.ResponseWriter, r *http.Request) {
	var sp supplier
	if !decodeOrReject(w, r, &sp) {
		return
	}
	if errs := validateSupplier(&sp); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO supplier (supplier_type, name, inn, phone, email)
		VALUES (?, ?, ?, ?, ?)
	`, sp.SupplierType, sp.Name, sp.INN, sp.Phone, sp.Email)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not create the supplier because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create supplier", err)
		return
	}

	if sp.ID, err = result.LastInsertId(); err != nil {
		writeServerError(w, "failed to create supplier", err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *server) handleSuppliersUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var sp supplier
	if !decodeOrReject(w, r, &sp) {
		return
	}
	if errs := validateSupplier(&sp); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE supplier
		SET supplier_type = ?, name = ?, inn = ?, phone = ?, email = ?
		WHERE id = ?
	`, sp.SupplierType, sp.Name, sp.INN, sp.Phone, sp.Email, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not update the supplier because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update supplier", err)
		return
	}

	if !s.writeUpdated(w, result, "failed to update supplier") {
		return
	}
	sp.ID = id
	writeJSON(w, http.StatusOK, sp)
}

// handleSuppliersDelete refuses to delete a supplier that materials still reference.
func (s *server) handleSuppliersDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		writeServerError(w, "failed to delete supplier", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	var used bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM material WHERE supplier_id = ?)`, id).Scan(&used); err != nil {
		writeServerError(w, "failed to delete supplier", err)
		return
	}
	if used {
		writeValidation(w, fieldErrors{"non_field_errors": supplierInUse})
		return
	}

	result, err := tx.Exec(`DELETE FROM supplier WHERE id = ?`, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": supplierInUse})
		return
	}
	if err != nil {
		writeServerError(w, "failed to delete supplier", err)
		return
	}
	if !s.writeUpdated(w, result, "failed to delete supplier") {
		return
	}

	if err := tx.Commit(); err != nil {
		writeServerError(w, "failed to delete supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const materialSelect = `
	SELECT
		m.id,
		m.name,
		m.material_type_id,
		COALESCE(mt.name, ''),
		m.supplier_id,
		sp.name,
		m.unit,
		m.quantity_in_package,
		m.description,
		m.image_url,
		m.cost,
		m.stock_quantity,
		m.min_quantity
	FROM material m
	JOIN supplier sp ON sp.id = m.supplier_id
	LEFT JOIN material_type mt ON mt.id = m.material_type_id
`

func scanMaterial(row rowScanner) (material, error) {
	var (
		m        material
		quantity sql.NullInt64
	)
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.MaterialTypeID,
		&m.MaterialType,
		&m.SupplierID,
		&m.SupplierName,
		&m.Unit,
		&quantity,
		&m.Description,
		&m.ImageURL,
		&m.Cost,
		&m.StockQuantity,
		&m.MinQuantity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return material{}, err
		}
		return material{}, fmt.Errorf("scan material: %w", err)
	}
	if m.MaterialType == "" {
		m.MaterialType = unknownMaterialType
	}
	m.QuantityInPackage = nullIntPtr(quantity)
	return m, nil
}

func (s *server) validateMaterial(m *material) (fieldErrors, error) {
	errs := fieldErrors{}

	m.Name = strings.TrimSpace(m.Name)
	m.Unit = strings.TrimSpace(m.Unit)
	if m.Name == "" {
		errs.add("name", "This field is required.")
	}
	if m.Unit == "" {
		m.Unit = defaultMaterialUnit
	}
	if m.Cost.IsNegative() {
		errs.add("cost", "Ensure this value is greater than or equal to 0.")
	}
	m.Cost = money{m.Cost.Round(2)}
	if m.StockQuantity < 0 {
		errs.add("stock_quantity", "Stock quantity cannot be negative.")
	}
	if m.MinQuantity < 0 {
		errs.add("min_quantity", "Minimum quantity cannot be negative.")
	}
	if m.QuantityInPackage != nil && *m.QuantityInPackage < 0 {
		errs.add("quantity_in_package", "Ensure this value is greater than or equal to 0.")
	}

	if m.MaterialTypeID <= 0 {
		errs.add("material_type_id", "Invalid material type.")
	} else if err := s.checkReference(errs, "material_type_id", "material_type", m.MaterialTypeID, "Material type not found."); err != nil {
		return nil, err
	}
	if err := s.checkReference(errs, "supplier", "supplier", m.SupplierID, "Supplier not found."); err != nil {
		return nil, err
	}

	return errs, nil
}

func (s *server) handleMaterialsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(materialSelect + ` ORDER BY m.name`)
	if err != nil {
		writeServerError(w, "failed to load materials", err)
		return
	}
	defer rows.Close()

	materials := make([]material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			writeServerError(w, "failed to load materials", err)
			return
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		writeServerError(w, "failed to load materials", err)
		return
	}

	writeJSON(w, http.StatusOK, materials)
}

func (s *server) handleMaterialsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	m, err := s.getMaterial(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load material", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *server) getMaterial(id int64) (material, error) {
	return scanMaterial(s.db.QueryRow(materialSelect+` WHERE m.id = ?`, id))
}

func (s *server) handleMaterialsCreate(w http.ResponseWriter, r *http.Request) {
	var m material
	if !decodeOrReject(w, r, &m) {
		return
	}
	errs, err := s.validateMaterial(&m)
	if err != nil {
		writeServerError(w, "failed to validate material", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO material (
			name,
			material_type_id,
			supplier_id,
			unit,
			quantity_in_package,
			description,
			image_url,
			cost,
			stock_quantity,
			min_quantity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Name, m.MaterialTypeID, m.SupplierID, m.Unit, m.QuantityInPackage,
		m.Description, m.ImageURL, m.Cost.StringFixed(2), m.StockQuantity, m.MinQuantity)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not create the material because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create material", err)
		return
	}

	id, err := result.LastInsertId()
	if err != nil {
		writeServerError(w, "failed to create material", err)
		return
	}

	created, err := s.getMaterial(id)
	if err != nil {
		writeServerError(w, "failed to load material", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleMaterialsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var m material
	if !decodeOrReject(w, r, &m) {
		return
	}
	errs, err := s.validateMaterial(&m)
	if err != nil {
		writeServerError(w, "failed to validate material", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE material
		SET
			name = ?,
			material_type_id = ?,
			supplier_id = ?,
			unit = ?,
			quantity_in_package = ?,
			description = ?,
			image_url = ?,
			cost = ?,
			stock_quantity = ?,
			min_quantity = ?
		WHERE id = ?
	`, m.Name, m.MaterialTypeID, m.SupplierID, m.Unit, m.QuantityInPackage,
		m.Description, m.ImageURL, m.Cost.StringFixed(2), m.StockQuantity, m.MinQuantity, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not update the material because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update material", err)
		return
	}

	if !s.writeUpdated(w, result, "failed to update material") {
		return
	}

	updated, err := s.getMaterial(id)
	if err != nil {
		writeServerError(w, "failed to load material", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleMaterialsDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "material")
}
