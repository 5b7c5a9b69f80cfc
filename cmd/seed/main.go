// Seeding tool: creates or updates the bootstrap admin operator and the
// default app settings rows.
//
// Env overrides:
//
//	SEED_EMAIL=admin@example.com SEED_PASSWORD=ChangeMe123 SEED_NAME="Admin"
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"microlend/internal/domain"
	"microlend/internal/repository/postgres"
	"microlend/pkg/config"
	"microlend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("seed")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	email := getenv("SEED_EMAIL", "admin@example.com")
	password := getenv("SEED_PASSWORD", "ChangeMe123")
	name := getenv("SEED_NAME", "Administrator")

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	operatorRepo := postgres.NewOperatorRepository(db)
	metaRepo := postgres.NewMetaRepository(db)
	ctx := context.Background()

	ensureAdmin(ctx, operatorRepo, log, email, password, name)
	ensureMeta(ctx, metaRepo, log, domain.MetaKeyInitialCapital, "0")
	ensureMeta(ctx, metaRepo, log, domain.MetaKeyAnnualRate, cfg.Lending.AnnualRatePercent)

	fmt.Println("OK: admin operator and app settings seeded")
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func ensureAdmin(ctx context.Context, repo *postgres.OperatorRepository, log logger.Logger, email, password, name string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password", map[string]interface{}{"error": err.Error()})
	}

	existing, err := repo.FindByEmail(ctx, email)
	if err == nil {
		existing.PasswordHash = string(hash)
		existing.Name = name
		existing.Role = domain.OperatorRoleAdmin
		existing.IsActive = true
		if err := repo.Update(ctx, existing); err != nil {
			log.Fatal("Failed to update admin operator", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Admin operator updated", map[string]interface{}{"email": email})
		return
	}

	now := time.Now().UTC()
	op := &domain.Operator{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         domain.OperatorRoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, op); err != nil {
		log.Fatal("Failed to create admin operator", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Admin operator created", map[string]interface{}{"email": email})
}

// ensureMeta writes the key only when missing so operator-tuned settings
// survive reseeding.
func ensureMeta(ctx context.Context, repo *postgres.MetaRepository, log logger.Logger, key, value string) {
	if _, err := repo.Get(ctx, key); err == nil {
		return
	}
	if err := repo.Set(ctx, key, value); err != nil {
		log.Fatal("Failed to seed app setting", map[string]interface{}{"key": key, "error": err.Error()})
	}
	log.Info("App setting seeded", map[string]interface{}{"key": key, "value": value})
}
