package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/ortziar/ankora/internal/adapters/postgres"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source string      `json:"source"`
	Sites  []SiteEntry `json:"sites"`
}

type SiteEntry struct {
	Slug         string            `json:"slug"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Municipality string            `json:"municipality,omitempty"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Experiences  []ExperienceEntry `json:"experiences"`
}

type ExperienceEntry struct {
	Slug            string  `json:"slug"`
	Title           string  `json:"title"`
	Summary         string  `json:"summary,omitempty"`
	AnchorLat       float64 `json:"anchor_lat"`
	AnchorLon       float64 `json:"anchor_lon"`
	ElevationM      float64 `json:"elevation_m"`
	Scale           float64 `json:"scale"`
	ContentURL      string  `json:"content_url,omitempty"`
	DurationSeconds int     `json:"duration_seconds,omitempty"`
	Published       bool    `json:"published"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("ankora-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	siteRepo := postgres.NewSiteRepo(db)
	experienceRepo := postgres.NewExperienceRepo(db)

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("Ankora Catalog Ingestor — %d sites from %s", len(manifest.Sites), manifest.Source)

	// Filter sites (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent site ingests

	for _, site := range manifest.Sites {
		if len(slugFilter) > 0 && !slugFilter[site.Slug] {
			continue
		}

		wg.Add(1)
		go func(s SiteEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestSite(ctx, siteRepo, experienceRepo, s); err != nil {
				log.Printf("ERROR [%s]: %v", s.Slug, err)
			}
		}(site)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-site ingestion
// ---------------------------------------------------------------------------

func ingestSite(ctx context.Context, sites *postgres.SiteRepo, experiences *postgres.ExperienceRepo, entry SiteEntry) error {
	site := domain.Site{
		Slug:         entry.Slug,
		Name:         entry.Name,
		Description:  entry.Description,
		Municipality: entry.Municipality,
		Location:     domain.GeoPoint{Lat: entry.Lat, Lon: entry.Lon},
	}
	if err := sites.Upsert(ctx, &site); err != nil {
		return err
	}

	// The upsert keys on slug; re-read to learn the row's UUID for the
	// experience foreign keys.
	stored, err := sites.GetBySlug(ctx, entry.Slug)
	if err != nil {
		return err
	}

	exps := make([]domain.Experience, 0, len(entry.Experiences))
	for _, e := range entry.Experiences {
		scale := e.Scale
		if scale <= 0 {
			scale = 1.0
		}
		exps = append(exps, domain.Experience{
			SiteID:  stored.ID,
			Slug:    e.Slug,
			Title:   e.Title,
			Summary: e.Summary,
			Anchor: domain.AnchorSpec{
				Location:        domain.GeoPoint{Lat: e.AnchorLat, Lon: e.AnchorLon},
				ElevationMeters: e.ElevationM,
				Scale:           scale,
			},
			ContentURL:      e.ContentURL,
			DurationSeconds: e.DurationSeconds,
			Published:       e.Published,
		})
	}
	if len(exps) == 0 {
		log.Printf("[%s] site upserted, no experiences", entry.Slug)
		return nil
	}

	if err := experiences.UpsertBatch(ctx, exps); err != nil {
		return err
	}
	log.Printf("[%s] %d experiences upserted", entry.Slug, len(exps))
	return nil
}
