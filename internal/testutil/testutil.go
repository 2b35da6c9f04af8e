// Package testutil provides shared test helpers for databases, object
// storage and seeded organisations.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/storage"
	"github.com/starford/alignos/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "alignos-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStorage creates a temporary object store.
func TestStorage(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Org is a small seeded organisation.
type Org struct {
	Team     *models.Team
	Sarah    *models.Person
	Marcus   *models.Person
	Project  *models.Project
	Decision *models.Decision
}

// SeedOrg inserts one team, two people, a project owned by Sarah and an
// active decision created by Marcus.
func SeedOrg(t *testing.T, db *store.DB) *Org {
	t.Helper()
	ctx := context.Background()
	o := &Org{
		Team:    &models.Team{Name: "Platform"},
		Sarah:   &models.Person{Name: "Sarah Chen", Email: "sarah.chen@placeholder.com", Role: "CTO"},
		Marcus:  &models.Person{Name: "Marcus Johnson", Email: "marcus.johnson@placeholder.com", Role: "Engineering Lead"},
		Project: &models.Project{Name: "Cloud Migration", Description: "Move workloads to GCP"},
	}
	if err := db.InsertTeam(ctx, o.Team); err != nil {
		t.Fatal(err)
	}
	o.Sarah.TeamID = &o.Team.ID
	o.Marcus.TeamID = &o.Team.ID
	if err := db.InsertPerson(ctx, o.Sarah); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPerson(ctx, o.Marcus); err != nil {
		t.Fatal(err)
	}
	o.Project.OwnerID = &o.Sarah.ID
	if err := db.InsertProject(ctx, o.Project); err != nil {
		t.Fatal(err)
	}
	o.Decision = &models.Decision{
		Title:       "Migrate to GCP",
		Description: "Move all production workloads to Google Cloud",
		Status:      models.DecisionActive,
		ProjectID:   &o.Project.ID,
		CreatedBy:   &o.Marcus.ID,
	}
	if err := db.InsertDecision(ctx, o.Decision); err != nil {
		t.Fatal(err)
	}
	return o
}
