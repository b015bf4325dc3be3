// Package main provides a CLI tool for seeding the store with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pacadmin/internal/docstore"
	"pacadmin/internal/docstore/memory"
	"pacadmin/internal/domain/auth"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/students"
	"pacadmin/internal/domain/version"
	fsstore "pacadmin/internal/infrastructure/firestore"
	"pacadmin/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store docstore.Store
	switch os.Getenv("STORE_BACKEND") {
	case "", "firestore":
		projectID := os.Getenv("FIRESTORE_PROJECT_ID")
		if projectID == "" {
			log.Fatal("FIRESTORE_PROJECT_ID environment variable is required")
		}
		fs, err := fsstore.New(ctx, projectID, log)
		if err != nil {
			log.Fatalw("failed to connect to firestore", "error", err)
		}
		defer fs.Close()
		store = fs
	case "memory":
		log.Warn("seeding an in-memory store: data is lost on exit")
		store = memory.New()
	default:
		log.Fatalw("unknown store backend", "backend", os.Getenv("STORE_BACKEND"))
	}

	log.Info("connected to store")

	if err := seedAdminUser(ctx, store, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if err := version.NewService(store, log, nil, "development").Ensure(ctx); err != nil {
		log.Fatalw("failed to seed version document", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, store, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, store docstore.Store, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@pacadmin.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	// Check if admin already exists
	if _, err := store.Get(ctx, auth.Collection, adminEmail); err == nil {
		log.Infow("admin user already exists", "email", adminEmail)
		return nil
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = store.Set(ctx, auth.Collection, adminEmail, map[string]any{
		"email":        adminEmail,
		"passwordHash": string(passwordHash),
		"name":         "System Admin",
		"role":         "superadmin",
		"isActive":     true,
		"createdAt":    time.Now().UnixMilli(),
	}, false)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	log.Infow("admin user created", "email", adminEmail)
	return nil
}

// seedDemoData writes a handful of live PAC entries and archived records,
// including one duplicate delete-view ID so the reconciliation dashboard
// has something to show.
func seedDemoData(ctx context.Context, store docstore.Store, log *logger.Logger) error {
	log.Info("seeding demo data...")

	now := time.Now()

	live := []map[string]any{
		{"pacNo": "PAC-1001", "amount": 2500.00, "holder": "R. Sharma"},
		{"pacNo": "PAC-1002", "amount": 1200.50, "holder": "M. Iyer"},
		{"pacNo": "PAC-1003", "amount": 780.00, "holder": "S. Das"},
	}
	for i, data := range live {
		docID := fmt.Sprintf("demo-live-%d", i+1)
		if err := store.Set(ctx, pac.Collection, docID, data, false); err != nil {
			return fmt.Errorf("seed live entry %s: %w", docID, err)
		}
	}

	archived := []struct {
		docID string
		data  map[string]any
	}{
		{"demo-del-1", map[string]any{"pacNo": "PAC-0901", "deleteViewId": "DEL-00001", "amount": 340.00}},
		{"demo-del-2", map[string]any{"pacNo": "PAC-0902", "deleteViewId": "DEL-00002", "amount": 415.25}},
		// Intentional duplicate of DEL-00002 for reconciler demos.
		{"demo-del-3", map[string]any{"pacNo": "PAC-0903", "deleteViewId": "DEL-00002", "amount": 90.00}},
		{"demo-del-4", map[string]any{"pacNo": "PAC-0904", "deleteViewId": "DEL-00003", "amount": 1800.00}},
	}
	for i, a := range archived {
		deletedAt := now.Add(time.Duration(i-len(archived)) * time.Hour)
		a.data["deletedAt"] = deletedAt.Format("02/01/2006, 15:04:05")
		a.data["deletedAtTimestamp"] = deletedAt.UnixMilli()
		a.data["deletedBy"] = "seed"
		if err := store.Set(ctx, pac.ArchiveCollection, a.docID, a.data, false); err != nil {
			return fmt.Errorf("seed archived entry %s: %w", a.docID, err)
		}
	}

	err := store.Set(ctx, pac.CounterCollection, pac.CounterDocID,
		map[string]any{"count": int64(3)}, false)
	if err != nil {
		return fmt.Errorf("seed delete counter: %w", err)
	}

	// One student with a UID and one without, so the UID preview has work.
	demoStudents := []struct {
		docID string
		data  map[string]any
	}{
		{"demo-student-1", map[string]any{
			"name": "A. Kumar", "studentUID": "000001", "phone": "9800000001",
			"department": "BCA", "CourseYear": "2nd", "DOB": "2004-07-09",
			"DOB_DMY": "09-07-2004", "DateofAdmission": "2023-08-01",
		}},
		{"demo-student-2", map[string]any{
			"name": "B. Roy", "phone": "9800000002",
			"department": "BSc", "CourseYear": "1st", "DOB": "2005-02-17",
			"DateofAdmission": "2024-07-15",
		}},
	}
	for _, st := range demoStudents {
		if err := store.Set(ctx, students.Collection, st.docID, st.data, false); err != nil {
			return fmt.Errorf("seed student %s: %w", st.docID, err)
		}
	}

	log.Infow("demo data seeded",
		"live_entries", len(live),
		"archived_entries", len(archived),
		"students", len(demoStudents),
	)
	return nil
}
