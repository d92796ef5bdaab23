package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/andika-pr/backend-otoparts/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := db.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dbURL, "otoparts-seeder")
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	defer pool.Close()

	seedUsers(ctx, pool)
	seedCatalog(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding users...")
	users := []struct {
		Name       string
		Email      string
		Approved   bool
		Percentage string
	}{
		{"Andika Pratama", "andika@otoparts.id", true, "1"},
		{"Bengkel Maju Jaya", "majujaya@example.com", true, "2"},
		{"Toko Sparepart Sentosa", "sentosa@example.com", true, "1.5"},
		{"Budi Santoso", "budi@example.com", false, "0"},
		{"Siti Aminah", "siti@example.com", false, "0"},
	}
	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (name, email, password_hash, is_approve, percentage)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO NOTHING`,
			u.Name, u.Email, hash, u.Approved, u.Percentage)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding catalog...")

	categories := []string{"Brakes", "Filters", "Suspension", "Electrical", "Engine"}
	categoryIDs := make(map[string]int64, len(categories))
	for _, name := range categories {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO main_categories (name) VALUES ($1) RETURNING id`, name).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", name, err)
		}
		categoryIDs[name] = id
	}

	cars := []struct {
		Name  string
		Model string
		Year  int
	}{
		{"Toyota", "Avanza", 2020},
		{"Honda", "Brio", 2021},
		{"Daihatsu", "Xenia", 2019},
		{"Mitsubishi", "Xpander", 2022},
	}
	carIDs := make([]int64, 0, len(cars))
	for _, c := range cars {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO cars (name, model, year) VALUES ($1, $2, $3) RETURNING id`,
			c.Name, c.Model, c.Year).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed car %s %s: %v", c.Name, c.Model, err)
		}
		carIDs = append(carIDs, id)
	}

	items := []struct {
		Name      string
		Brand     string
		Category  string
		Feature   bool
		Universal bool
		OENo      string
		Quantity  int
		Price     string
		Cars      []int
	}{
		{"Front Brake Pad Set", "Brembo", "Brakes", true, false, "04465-BZ150", 40, "350000", []int{0, 2}},
		{"Oil Filter", "Sakura", "Filters", false, false, "90915-YZZE1", 120, "45000", []int{0, 1, 2}},
		{"Air Filter", "Denso", "Filters", false, false, "17801-BZ110", 80, "95000", []int{3}},
		{"Shock Absorber Rear", "KYB", "Suspension", true, false, "48531-BZ110", 24, "575000", []int{0, 2, 3}},
		{"Universal Wiper Blade 18\"", "Bosch", "Electrical", false, true, "", 200, "65000", nil},
		{"Spark Plug Iridium", "NGK", "Engine", true, true, "", 300, "110000", nil},
	}
	for _, it := range items {
		var oeNo any
		if it.OENo != "" {
			oeNo = it.OENo
		}
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO items (name, brand_name, main_category_id, is_feature, is_universal,
				oe_no, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			it.Name, it.Brand, categoryIDs[it.Category], it.Feature, it.Universal,
			oeNo, it.Quantity, it.Price).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed item %s: %v", it.Name, err)
		}
		for _, carIdx := range it.Cars {
			if _, err := pool.Exec(ctx, `
				INSERT INTO car_items (car_id, item_id) VALUES ($1, $2)`,
				carIDs[carIdx], id); err != nil {
				log.Fatalf("Failed to link item %s to car: %v", it.Name, err)
			}
		}
	}

	discounts := []struct {
		ItemName string
		Kind     string
		Value    string
		Active   bool
	}{
		{"Front Brake Pad Set", "percentage", "10", true},
		{"Oil Filter", "fixed", "5000", true},
		{"Shock Absorber Rear", "percentage", "15", false},
	}
	for _, d := range discounts {
		if _, err := pool.Exec(ctx, `
			INSERT INTO discounts (item_id, kind, value, is_active)
			SELECT id, $2, $3, $4 FROM items WHERE name = $1`,
			d.ItemName, d.Kind, d.Value, d.Active); err != nil {
			log.Fatalf("Failed to seed discount for %s: %v", d.ItemName, err)
		}
	}
}
