package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const duplicateProductName = "A product with this name already exists. Enter a different name."

type productListItem struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Article              *string  `json:"article"`
	MinPartnerPrice      *float64 `json:"min_partner_price"`
	ProductType          string   `json:"product_type"`
	ProductTypeID        int64    `json:"product_type_id"`
	MaterialType         string   `json:"material_type"`
	MaterialTypeID       int64    `json:"material_type_id"`
	ManufactureTimeHours int64    `json:"manufacture_time_hours"`
}

type workshopTime struct {
	Workshop         string   `json:"workshop"`
	ManufactureHours *float64 `json:"manufacture_hours"`
}

type productDetail struct {
	productListItem
	Workshops []workshopTime `json:"workshops"`
}

type productPayload struct {
	Article         *string `json:"article"`
	Name            string  `json:"name"`
	MinPartnerPrice any     `json:"min_partner_price"`
	ProductTypeID   int64   `json:"product_type_id"`
	MaterialTypeID  int64   `json:"material_type_id"`
}

type productRecord struct {
	Article         sql.NullString
	Name            string
	MinPartnerPrice sql.NullFloat64
	ProductTypeID   int64
	MaterialTypeID  int64
}

const productSelect = `
	SELECT
		p.id,
		p.name,
		p.article,
		p.min_partner_price,
		pt.name,
		p.product_type_id,
		mt.name,
		p.material_type_id,
		COALESCE((SELECT SUM(pw.manufacture_hours) FROM product_workshop pw WHERE pw.product_id = p.id), 0)
	FROM product p
	JOIN product_type pt ON pt.id = p.product_type_id
	JOIN material_type mt ON mt.id = p.material_type_id
`

// roundedHours rounds a total manufacture time up to whole hours. Negative
// totals count as zero.
func roundedHours(total float64) int64 {
	if total < 0 || math.IsNaN(total) {
		return 0
	}
	return int64(math.Ceil(total))
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.listProducts()
	if err != nil {
		writeServerError(w, "failed to load products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) handleProductsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	detail, err := s.getProductDetail(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load product", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *server) handleProductWorkshops(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	workshops, err := s.listProductWorkshops(id)
	if err != nil {
		writeServerError(w, "failed to load product workshops", err)
		return
	}
	writeJSON(w, http.StatusOK, workshops)
}

func (s *server) handleProductsCreate(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if !decodeOrReject(w, r, &payload) {
		return
	}

	rec, errs, err := s.parseProductPayload(payload)
	if err != nil {
		writeServerError(w, "failed to validate product", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO product (name, article, min_partner_price, product_type_id, material_type_id)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Name, rec.Article, rec.MinPartnerPrice, rec.ProductTypeID, rec.MaterialTypeID)
	if isUniqueViolation(err) {
		writeValidation(w, fieldErrors{"name": duplicateProductName})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create product", err)
		return
	}

	id, err := result.LastInsertId()
	if err != nil {
		writeServerError(w, "failed to create product", err)
		return
	}

	detail, err := s.getProductDetail(id)
	if err != nil {
		writeServerError(w, "failed to load product", err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (s *server) handleProductsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var payload productPayload
	if !decodeOrReject(w, r, &payload) {
		return
	}

	rec, errs, err := s.parseProductPayload(payload)
	if err != nil {
		writeServerError(w, "failed to validate product", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE product
		SET
			name = ?,
			article = ?,
			min_partner_price = ?,
			product_type_id = ?,
			material_type_id = ?
		WHERE id = ?
	`, rec.Name, rec.Article, rec.MinPartnerPrice, rec.ProductTypeID, rec.MaterialTypeID, id)
	if isUniqueViolation(err) {
		writeValidation(w, fieldErrors{"name": duplicateProductName})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update product", err)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		writeServerError(w, "failed to update product", err)
		return
	}
	if affected == 0 {
		writeNotFound(w)
		return
	}

	detail, err := s.getProductDetail(id)
	if err != nil {
		writeServerError(w, "failed to load product", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleProductsDelete removes the product together with its workshop links.
func (s *server) handleProductsDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		writeServerError(w, "failed to delete product", err)
		return
	}

	if _, err := tx.Exec(`DELETE FROM product_workshop WHERE product_id = ?`, id); err != nil {
		_ = tx.Rollback()
		writeServerError(w, "failed to delete product", err)
		return
	}

	result, err := tx.Exec(`DELETE FROM product WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		writeServerError(w, "failed to delete product", err)
		return
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		_ = tx.Rollback()
		if err != nil {
			writeServerError(w, "failed to delete product", err)
			return
		}
		writeNotFound(w)
		return
	}

	if err := tx.Commit(); err != nil {
		writeServerError(w, "failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) parseProductPayload(p productPayload) (productRecord, fieldErrors, error) {
	errs := fieldErrors{}
	rec := productRecord{
		Name:           strings.TrimSpace(p.Name),
		ProductTypeID:  p.ProductTypeID,
		MaterialTypeID: p.MaterialTypeID,
	}

	if rec.Name == "" {
		errs.add("name", "This field is required.")
	}
	if p.Article != nil {
		if article := strings.TrimSpace(*p.Article); article != "" {
			rec.Article = sql.NullString{String: article, Valid: true}
		}
	}

	price, err := parseOptionalDecimal(p.MinPartnerPrice)
	switch {
	case err != nil:
		errs.add("min_partner_price", "A valid number is required.")
	case price.Valid && price.Decimal.IsNegative():
		errs.add("min_partner_price", "Ensure this value is greater than or equal to 0.")
	case price.Valid:
		rec.MinPartnerPrice = sql.NullFloat64{Float64: price.Decimal.Round(2).InexactFloat64(), Valid: true}
	}

	if err := s.checkReference(errs, "product_type_id", "product_type", rec.ProductTypeID, "Product type not found."); err != nil {
		return rec, nil, err
	}
	if err := s.checkReference(errs, "material_type_id", "material_type", rec.MaterialTypeID, "Material type not found."); err != nil {
		return rec, nil, err
	}

	return rec, errs, nil
}

// checkReference records a field error when id does not name a row of table.
func (s *server) checkReference(errs fieldErrors, field, table string, id int64, missing string) error {
	if id <= 0 {
		errs.add(field, "Invalid identifier.")
		return nil
	}
	exists, err := s.rowExists(table, id)
	if err != nil {
		return err
	}
	if !exists {
		errs.add(field, missing)
	}
	return nil
}

// parseOptionalDecimal accepts a JSON number, a numeric string, an empty
// string or null.
func parseOptionalDecimal(v any) (decimal.NullDecimal, error) {
	var raw string
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case string:
		raw = strings.TrimSpace(x)
		if raw == "" {
			return decimal.NullDecimal{}, nil
		}
	case fmt.Stringer:
		raw = x.String()
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x)), nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("unsupported number type %T", v)
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func (s *server) listProducts() ([]productListItem, error) {
	rows, err := s.db.Query(productSelect + ` ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]productListItem, 0)
	for rows.Next() {
		item, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (productListItem, error) {
	var (
		item    productListItem
		article sql.NullString
		price   sql.NullFloat64
		hours   float64
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&article,
		&price,
		&item.ProductType,
		&item.ProductTypeID,
		&item.MaterialType,
		&item.MaterialTypeID,
		&hours,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return productListItem{}, err
		}
		return productListItem{}, fmt.Errorf("scan product: %w", err)
	}

	item.Article = nullStringPtr(article)
	item.MinPartnerPrice = nullFloatPtr(price)
	item.ManufactureTimeHours = roundedHours(hours)
	return item, nil
}

func (s *server) getProductDetail(id int64) (productDetail, error) {
	item, err := scanProduct(s.db.QueryRow(productSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return productDetail{}, err
	}

	workshops, err := s.listProductWorkshops(id)
	if err != nil {
		return productDetail{}, err
	}

	return productDetail{productListItem: item, Workshops: workshops}, nil
}

func (s *server) listProductWorkshops(productID int64) ([]workshopTime, error) {
	rows, err := s.db.Query(`
		SELECT w.name, pw.manufacture_hours
		FROM product_workshop pw
		JOIN workshop w ON w.id = pw.workshop_id
		WHERE pw.product_id = ?
		ORDER BY w.name
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product workshops: %w", err)
	}
	defer rows.Close()

	workshops := make([]workshopTime, 0)
	for rows.Next() {
		var wt workshopTime
		var hours sql.NullFloat64
		if err := rows.Scan(&wt.Workshop, &hours); err != nil {
			return nil, fmt.Errorf("scan product workshop: %w", err)
		}
		wt.ManufactureHours = nullFloatPtr(hours)
		workshops = append(workshops, wt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product workshops: %w", err)
	}

	return workshops, nil
}
