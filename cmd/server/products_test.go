package main

import (
	"fmt"
	"net/http"
	"testing"
)

func TestRoundedHours(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{-2.5, 0},
		{1.0, 1},
		{1.01, 2},
		{7.5, 8},
	}
	for _, tc := range tests {
		if got := roundedHours(tc.in); got != tc.want {
			t.Fatalf("roundedHours(%v): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func createProduct(t *testing.T, h http.Handler, name string) productDetail {
	t.Helper()

	body := fmt.Sprintf(`{"name":%q,"article":"A-1","min_partner_price":"1500.456","product_type_id":1,"material_type_id":1}`, name)
	rec := doJSON(t, h, http.MethodPost, "/api/products", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[productDetail](t, rec)
}

func TestProductCreateAndDetail(t *testing.T) {
	srv, h := newTestServer(t)
	seedReferenceRows(t, srv.db)

	created := createProduct(t, h, "Шкаф-купе")
	if created.ID == 0 || created.ProductType != "Шкафы" || created.MaterialType != "МДФ" {
		t.Fatalf("unexpected created product: %+v", created)
	}
	if created.MinPartnerPrice == nil || *created.MinPartnerPrice != 1500.46 {
		t.Fatalf("expected price rounded to 1500.46, got %v", created.MinPartnerPrice)
	}
	if created.ManufactureTimeHours != 0 || len(created.Workshops) != 0 {
		t.Fatalf("new product should have no workshop time: %+v", created)
	}

	_, err := srv.db.Exec(`
		INSERT INTO product_workshop (product_id, workshop_id, manufacture_hours) VALUES
			(?, 1, 1.2),
			(?, 2, 2.3)
	`, created.ID, created.ID)
	if err != nil {
		t.Fatalf("failed linking workshops: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), "")
	detail := decodeBody[productDetail](t, rec)
	if detail.ManufactureTimeHours != 4 {
		t.Fatalf("expected 3.5 hours rounded up to 4, got %d", detail.ManufactureTimeHours)
	}
	if len(detail.Workshops) != 2 || detail.Workshops[0].Workshop != "Раскроя" {
		t.Fatalf("unexpected workshops: %+v", detail.Workshops)
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/products/%d/workshops", created.ID), "")
	workshops := decodeBody[[]workshopTime](t, rec)
	if len(workshops) != 2 || workshops[1].ManufactureHours == nil || *workshops[1].ManufactureHours != 2.3 {
		t.Fatalf("unexpected product workshops: %+v", workshops)
	}
}

func TestProductValidation(t *testing.T) {
	srv, h := newTestServer(t)
	seedReferenceRows(t, srv.db)

	rec := doJSON(t, h, http.MethodPost, "/api/products",
		`{"name":"  ","min_partner_price":-5,"product_type_id":99,"material_type_id":0}`)
	errs := validationErrors(t, rec)
	for _, field := range []string{"name", "min_partner_price", "product_type_id", "material_type_id"} {
		if errs[field] == "" {
			t.Fatalf("expected error on %s, got %+v", field, errs)
		}
	}

	rec = doJSON(t, h, http.MethodPost, "/api/products",
		`{"name":"Комод","min_partner_price":"abc","product_type_id":2,"material_type_id":2}`)
	errs = validationErrors(t, rec)
	if errs["min_partner_price"] == "" {
		t.Fatalf("expected min_partner_price error, got %+v", errs)
	}
}

func TestProductDuplicateName(t *testing.T) {
	srv, h := newTestServer(t)
	seedReferenceRows(t, srv.db)

	createProduct(t, h, "Комод")

	rec := doJSON(t, h, http.MethodPost, "/api/products",
		`{"name":"Комод","product_type_id":2,"material_type_id":2}`)
	errs := validationErrors(t, rec)
	if errs["name"] != duplicateProductName {
		t.Fatalf("expected duplicate name error, got %+v", errs)
	}
}

func TestProductUpdateAndDelete(t *testing.T) {
	srv, h := newTestServer(t)
	seedReferenceRows(t, srv.db)

	created := createProduct(t, h, "Прихожая")
	path := fmt.Sprintf("/api/products/%d", created.ID)

	rec := doJSON(t, h, http.MethodPut, path,
		`{"name":"Прихожая Люкс","article":"","min_partner_price":null,"product_type_id":2,"material_type_id":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[productDetail](t, rec)
	if updated.Name != "Прихожая Люкс" || updated.Article != nil || updated.MinPartnerPrice != nil || updated.ProductType != "Комоды" {
		t.Fatalf("unexpected updated product: %+v", updated)
	}

	if _, err := srv.db.Exec(`INSERT INTO product_workshop (product_id, workshop_id, manufacture_hours) VALUES (?, 1, 1)`, created.ID); err != nil {
		t.Fatalf("failed linking workshop: %v", err)
	}

	rec = doJSON(t, h, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	var links int
	if err := srv.db.QueryRow(`SELECT COUNT(*) FROM product_workshop WHERE product_id = ?`, created.ID).Scan(&links); err != nil {
		t.Fatalf("failed counting links: %v", err)
	}
	if links != 0 {
		t.Fatalf("expected workshop links removed, got %d", links)
	}

	if rec := doJSON(t, h, http.MethodDelete, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, path, `{"name":"X","product_type_id":1,"material_type_id":1}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 updating deleted product, got %d", rec.Code)
	}
}

func TestProductsListOrderedByName(t *testing.T) {
	srv, h := newTestServer(t)
	seedReferenceRows(t, srv.db)

	createProduct(t, h, "Шкаф")
	createProduct(t, h, "Кровать")

	rec := doJSON(t, h, http.MethodGet, "/api/products", "")
	products := decodeBody[[]productListItem](t, rec)
	if len(products) != 2 || products[0].Name != "Кровать" || products[1].Name != "Шкаф" {
		t.Fatalf("products not ordered by name: %+v", products)
	}
}

func TestParseOptionalDecimal(t *testing.T) {
	for _, v := range []any{nil, "", "  "} {
		d, err := parseOptionalDecimal(v)
		if err != nil || d.Valid {
			t.Fatalf("parseOptionalDecimal(%#v): expected empty value, got %+v, %v", v, d, err)
		}
	}

	d, err := parseOptionalDecimal("12,50")
	if err != nil || !d.Valid || d.Decimal.String() != "12.5" {
		t.Fatalf("expected comma decimal to parse, got %+v, %v", d, err)
	}

	if _, err := parseOptionalDecimal(true); err == nil {
		t.Fatal("expected boolean to be rejected")
	}
}
