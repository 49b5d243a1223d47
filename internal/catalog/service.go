package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
}

func (in ProductInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if in.Stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in ProductInput, imageURLs []string) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Images:      imageURLs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Images == nil {
		p.Images = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, description, price, stock, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Images, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, productID uuid.UUID, in ProductInput, imageURLs []string) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if imageURLs == nil {
		imageURLs = []string{}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, images = $6, updated_at = NOW()
		WHERE id = $1`,
		productID, in.Name, in.Description, in.Price, in.Stock, imageURLs,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProductNotFound
	}
	return s.Get(ctx, productID)
}

func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, price, stock, images, created_at, updated_at
		FROM products
		WHERE id = $1`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, price, stock, images, created_at, updated_at
		FROM products
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Images, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Service) Delete(ctx context.Context, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock applies a floored decrement in a single conditional update,
// so concurrent approvals touching the same product serialize in the database
// and the count can never go below zero.
func (s *Service) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int64) (int64, error) {
	var newStock int64
	err := s.pool.QueryRow(ctx, `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING stock`,
		productID, quantity,
	).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return newStock, nil
}
