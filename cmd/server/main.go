package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/furniture/internal/config"
	"github.com/Simplici0/furniture/internal/db"
	"github.com/Simplici0/furniture/internal/migrations"
	"github.com/Simplici0/furniture/internal/rawmaterial"
	"github.com/Simplici0/furniture/internal/seed"
)

type server struct {
	db          *sql.DB
	refs        rawmaterial.Store
	calcTimeout time.Duration
}

func newServer(database *sql.DB, calcTimeout time.Duration) *server {
	return &server{
		db:          database,
		refs:        rawmaterial.NewSQLStore(database),
		calcTimeout: calcTimeout,
	}
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		applied, err := migrations.Up(context.Background(), database)
		if err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
		log.Printf("applied %d migrations", applied)
	}

	version, err := migrations.Version(context.Background(), database)
	if err != nil {
		log.Fatalf("failed to read schema version: %v", err)
	}
	log.Printf("schema version %d", version)

	if cfg.SeedReference {
		catalog, err := seed.DefaultCatalog()
		if err != nil {
			log.Fatalf("failed to load reference catalogue: %v", err)
		}
		stats, err := seed.Run(database, catalog)
		if err != nil {
			log.Fatalf("failed to seed reference data: %v", err)
		}
		log.Printf("reference seed: %d inserted, %d already present", stats.Inserts, stats.Skipped)
	}

	srv := newServer(database, cfg.CalcTimeout)

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBPath)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/raw-material/calculate", s.handleRawMaterialCalculate)

		r.Get("/product-types", s.handleProductTypesList)
		r.Get("/material-types", s.handleMaterialTypesList)

		r.Get("/products", s.handleProductsList)
		r.Post("/products", s.handleProductsCreate)
		r.Get("/products/{id}", s.handleProductsGet)
		r.Put("/products/{id}", s.handleProductsUpdate)
		r.Delete("/products/{id}", s.handleProductsDelete)
		r.Get("/products/{id}/workshops", s.handleProductWorkshops)

		r.Get("/workshops", s.handleWorkshopsList)
		r.Post("/workshops", s.handleWorkshopsCreate)
		r.Get("/workshops/{id}", s.handleWorkshopsGet)
		r.Put("/workshops/{id}", s.handleWorkshopsUpdate)
		r.Delete("/workshops/{id}", s.handleWorkshopsDelete)

		r.Get("/partners", s.handlePartnersList)
		r.Post("/partners", s.handlePartnersCreate)
		r.Get("/partners/{id}", s.handlePartnersGet)
		r.Put("/partners/{id}", s.handlePartnersUpdate)
		r.Delete("/partners/{id}", s.handlePartnersDelete)

		r.Get("/employees", s.handleEmployeesList)
		r.Post("/employees", s.handleEmployeesCreate)
		r.Get("/employees/{id}", s.handleEmployeesGet)
		r.Put("/employees/{id}", s.handleEmployeesUpdate)
		r.Delete("/employees/{id}", s.handleEmployeesDelete)

		r.Get("/suppliers", s.handleSuppliersList)
		r.Post("/suppliers", s.handleSuppliersCreate)
		r.Get("/suppliers/{id}", s.handleSuppliersGet)
		r.Put("/suppliers/{id}", s.handleSuppliersUpdate)
		r.Delete("/suppliers/{id}", s.handleSuppliersDelete)

		r.Get("/materials", s.handleMaterialsList)
		r.Post("/materials", s.handleMaterialsCreate)
		r.Get("/materials/{id}", s.handleMaterialsGet)
		r.Put("/materials/{id}", s.handleMaterialsUpdate)
		r.Delete("/materials/{id}", s.handleMaterialsDelete)
	})

	return r
}
