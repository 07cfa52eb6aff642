package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxPartnerRating = 10
	maxINNLength     = 12
	birthDateLayout  = "2006-01-02"
)

type partner struct {
	ID           int64  `json:"id"`
	PartnerType  string `json:"partner_type"`
	CompanyName  string `json:"company_name"`
	LegalAddress string `json:"legal_address"`
	INN          string `json:"inn"`
	DirectorName string `json:"director_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	LogoURL      string `json:"logo_url"`
	Rating       *int64 `json:"rating"`
	SalesPlaces  string `json:"sales_places"`
}

type employee struct {
	ID           int64   `json:"id"`
	FullName     string  `json:"full_name"`
	BirthDate    *string `json:"birth_date"`
	PassportData string  `json:"passport_data"`
	BankDetails  string  `json:"bank_details"`
	HasFamily    bool    `json:"has_family"`
	HealthStatus string  `json:"health_status"`
}

const partnerColumns = `id, partner_type, company_name, legal_address, inn, director_name, phone, email, logo_url, rating, sales_places`

func scanPartner(row rowScanner) (partner, error) {
	var p partner
	var rating int64
	err := row.Scan(&p.ID, &p.PartnerType, &p.CompanyName, &p.LegalAddress, &p.INN,
		&p.DirectorName, &p.Phone, &p.Email, &p.LogoURL, &rating, &p.SalesPlaces)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return partner{}, err
		}
		return partner{}, fmt.Errorf("scan partner: %w", err)
	}
	p.Rating = &rating
	return p, nil
}

func validatePartner(p *partner) fieldErrors {
	errs := fieldErrors{}

	p.PartnerType = strings.TrimSpace(p.PartnerType)
	p.CompanyName = strings.TrimSpace(p.CompanyName)
	p.INN = strings.TrimSpace(p.INN)
	p.Email = strings.TrimSpace(p.Email)

	if p.PartnerType == "" {
		errs.add("partner_type", "This field is required.")
	}
	if p.CompanyName == "" {
		errs.add("company_name", "This field is required.")
	}
	if utf8.RuneCountInString(p.INN) > maxINNLength {
		errs.add("inn", fmt.Sprintf("Ensure this field has no more than %d characters.", maxINNLength))
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			errs.add("email", "Enter a valid email address.")
		}
	}
	if p.Rating == nil {
		zero := int64(0)
		p.Rating = &zero
	} else if *p.Rating < 0 || *p.Rating > maxPartnerRating {
		errs.add("rating", fmt.Sprintf("Ensure this value is between 0 and %d.", maxPartnerRating))
	}

	return errs
}

func (s *server) handlePartnersList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT ` + partnerColumns + ` FROM partner ORDER BY company_name`)
	if err != nil {
		writeServerError(w, "failed to load partners", err)
		return
	}
	defer rows.Close()

	partners := make([]partner, 0)
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			writeServerError(w, "failed to load partners", err)
			return
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		writeServerError(w, "failed to load partners", err)
		return
	}

	writeJSON(w, http.StatusOK, partners)
}

func (s *server) handlePartnersGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	p, err := scanPartner(s.db.QueryRow(`SELECT `+partnerColumns+` FROM partner WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load partner", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handlePartnersCreate(w http.ResponseWriter, r *http.Request) {
	var p partner
	if !decodeOrReject(w, r, &p) {
		return
	}
	if errs := validatePartner(&p); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO partner (partner_type, company_name, legal_address, inn, director_name, phone, email, logo_url, rating, sales_places)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PartnerType, p.CompanyName, p.LegalAddress, p.INN, p.DirectorName, p.Phone, p.Email, p.LogoURL, *p.Rating, p.SalesPlaces)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not create the partner because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create partner", err)
		return
	}

	if p.ID, err = result.LastInsertId(); err != nil {
		writeServerError(w, "failed to create partner", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handlePartnersUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var p partner
	if !decodeOrReject(w, r, &p) {
		return
	}
	if errs := validatePartner(&p); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE partner
		SET
			partner_type = ?,
			company_name = ?,
			legal_address = ?,
			inn = ?,
			director_name = ?,
			phone = ?,
			email = ?,
			logo_url = ?,
			rating = ?,
			sales_places = ?
		WHERE id = ?
	`, p.PartnerType, p.CompanyName, p.LegalAddress, p.INN, p.DirectorName, p.Phone, p.Email, p.LogoURL, *p.Rating, p.SalesPlaces, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not update the partner because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update partner", err)
		return
	}

	if !s.writeUpdated(w, result, "failed to update partner") {
		return
	}
	p.ID = id
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handlePartnersDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "partner")
}

const employeeColumns = `id, full_name, birth_date, passport_data, bank_details, has_family, health_status`

func scanEmployee(row rowScanner) (employee, error) {
	var e employee
	var birthDate sql.NullString
	err := row.Scan(&e.ID, &e.FullName, &birthDate, &e.PassportData, &e.BankDetails, &e.HasFamily, &e.HealthStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return employee{}, err
		}
		return employee{}, fmt.Errorf("scan employee: %w", err)
	}
	e.BirthDate = nullStringPtr(birthDate)
	return e, nil
}

func validateEmployee(e *employee) fieldErrors {
	errs := fieldErrors{}

	e.FullName = strings.TrimSpace(e.FullName)
	if utf8.RuneCountInString(e.FullName) < 3 {
		errs.add("full_name", "Ensure this field has at least 3 characters.")
	}

	if e.BirthDate != nil {
		raw := strings.TrimSpace(*e.BirthDate)
		if raw == "" {
			e.BirthDate = nil
		} else if _, err := time.Parse(birthDateLayout, raw); err != nil {
			errs.add("birth_date", "Date has wrong format. Use YYYY-MM-DD.")
		} else {
			e.BirthDate = &raw
		}
	}

	return errs
}

func (s *server) handleEmployeesList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT ` + employeeColumns + ` FROM employee ORDER BY full_name`)
	if err != nil {
		writeServerError(w, "failed to load employees", err)
		return
	}
	defer rows.Close()

	employees := make([]employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			writeServerError(w, "failed to load employees", err)
			return
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		writeServerError(w, "failed to load employees", err)
		return
	}

	writeJSON(w, http.StatusOK, employees)
}

func (s *server) handleEmployeesGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	e, err := scanEmployee(s.db.QueryRow(`SELECT `+employeeColumns+` FROM employee WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeServerError(w, "failed to load employee", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *server) handleEmployeesCreate(w http.ResponseWriter, r *http.Request) {
	var e employee
	if !decodeOrReject(w, r, &e) {
		return
	}
	if errs := validateEmployee(&e); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		INSERT INTO employee (full_name, birth_date, passport_data, bank_details, has_family, health_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.FullName, e.BirthDate, e.PassportData, e.BankDetails, e.HasFamily, e.HealthStatus)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not create the employee because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to create employee", err)
		return
	}

	if e.ID, err = result.LastInsertId(); err != nil {
		writeServerError(w, "failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *server) handleEmployeesUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var e employee
	if !decodeOrReject(w, r, &e) {
		return
	}
	if errs := validateEmployee(&e); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	result, err := s.db.Exec(`
		UPDATE employee
		SET
			full_name = ?,
			birth_date = ?,
			passport_data = ?,
			bank_details = ?,
			has_family = ?,
			health_status = ?
		WHERE id = ?
	`, e.FullName, e.BirthDate, e.PassportData, e.BankDetails, e.HasFamily, e.HealthStatus, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": "Could not update the employee because of a data conflict."})
		return
	}
	if err != nil {
		writeServerError(w, "failed to update employee", err)
		return
	}

	if !s.writeUpdated(w, result, "failed to update employee") {
		return
	}
	e.ID = id
	writeJSON(w, http.StatusOK, e)
}

func (s *server) handleEmployeesDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "employee")
}

// writeUpdated reports whether an UPDATE touched a row. It writes the error
// response itself when it did not.
func (s *server) writeUpdated(w http.ResponseWriter, result sql.Result, failMsg string) bool {
	affected, err := result.RowsAffected()
	if err != nil {
		writeServerError(w, failMsg, err)
		return false
	}
	if affected == 0 {
		writeNotFound(w)
		return false
	}
	return true
}

// deleteByID deletes one row of table by the {id} URL parameter. table is
// always a fixed name from this package.
func (s *server) deleteByID(w http.ResponseWriter, r *http.Request, table string) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	result, err := s.db.Exec(`DELETE FROM `+table+` WHERE id = ?`, id)
	if isConstraintViolation(err) {
		writeValidation(w, fieldErrors{"non_field_errors": fmt.Sprintf("The %s is still referenced by other records.", table)})
		return
	}
	if err != nil {
		writeServerError(w, "failed to delete "+table, err)
		return
	}
	if !s.writeUpdated(w, result, "failed to delete "+table) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
