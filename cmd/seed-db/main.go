// Command seed-db populates the database with a product catalog, size
// variants, demo vouchers, and an API key. Safe to re-run: every insert is
// an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/auth"
	"github.com/velora/checkout/internal/storage/postgres"
)

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Image struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

type voucherJSON struct {
	Code     string `json:"code"`
	Discount int    `json:"discount"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_APIKEYPEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_APIKEYPEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedSizes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed sizes")
	}
	if err := seedVouchers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	const q = `
		INSERT INTO products (id, name, price, stock, image_thumbnail, image_mobile, image_tablet, image_desktop)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			image_thumbnail = EXCLUDED.image_thumbnail,
			image_mobile = EXCLUDED.image_mobile,
			image_tablet = EXCLUDED.image_tablet,
			image_desktop = EXCLUDED.image_desktop`

	for _, p := range products {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, q, id, p.Name, p.Price, p.Stock,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop); err != nil {
			return errors.Wrapf(err, "insert product %q", p.Name)
		}
	}

	slog.Info("seeded products", slog.Int("count", len(products)))
	return nil
}

func seedSizes(ctx context.Context, pool *pgxpool.Pool) error {
	sizes := []string{"XS", "S", "M", "L", "XL"}

	const q = `
		INSERT INTO sizes (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	for _, name := range sizes {
		if _, err := pool.Exec(ctx, q, uuid.New().String(), name); err != nil {
			return errors.Wrapf(err, "insert size %q", name)
		}
	}

	slog.Info("seeded sizes", slog.Int("count", len(sizes)))
	return nil
}

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	vouchers := []voucherJSON{
		{Code: "WELCOME10", Discount: 10},
		{Code: "SUMMER25", Discount: 25},
		{Code: "STAFF50", Discount: 50},
	}

	const q = `
		INSERT INTO vouchers (id, code, discount, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET discount = EXCLUDED.discount, active = TRUE`

	for _, v := range vouchers {
		if _, err := pool.Exec(ctx, q, uuid.New().String(), v.Code, v.Discount); err != nil {
			return errors.Wrapf(err, "insert voucher %q", v.Code)
		}
	}

	slog.Info("seeded vouchers", slog.Int("count", len(vouchers)))
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	hash := auth.HashKey(apiKey, []byte(pepper))

	const q = `
		INSERT INTO api_keys (id, key_hash, name, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (key_hash) DO NOTHING`

	if _, err := pool.Exec(ctx, q, uuid.New().String(), hash, "seeded"); err != nil {
		return errors.Wrap(err, "insert api key")
	}

	slog.Info("seeded api key")
	return nil
}
