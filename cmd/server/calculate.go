package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/furniture/internal/rawmaterial"
)

type rawMaterialResponse struct {
	RawMaterialAmount int64 `json:"raw_material_amount"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRawMaterialCalculate always answers 200. Every failure, including a
// malformed body, is reported as raw_material_amount = -1.
func (s *server) handleRawMaterialCalculate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.calcTimeout)
	defer cancel()

	res, err := s.calculateRawMaterial(ctx, r)
	if err != nil {
		log.Printf("raw material calculation failed (request_id=%s): %v", middleware.GetReqID(r.Context()), err)
	}

	writeJSON(w, http.StatusOK, rawMaterialResponse{RawMaterialAmount: rawmaterial.Amount(res, err)})
}

func (s *server) calculateRawMaterial(ctx context.Context, r *http.Request) (rawmaterial.Result, error) {
	var body any
	if err := decodeJSON(r, &body); err != nil {
		return rawmaterial.Result{}, fmt.Errorf("%w: %v", rawmaterial.ErrInvalidInput, err)
	}

	// A non-object body is treated as an empty payload.
	payload, _ := body.(map[string]any)

	in, err := rawmaterial.FromPayload(payload)
	if err != nil {
		return rawmaterial.Result{}, err
	}

	return rawmaterial.Compute(ctx, s.refs, in)
}
