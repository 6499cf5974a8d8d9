package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	drv "github.com/go-sql-driver/mysql"

	"fitidea/internal/domain"
)

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
func valURL(u string) any {
	if u == "" {
		return nil
	}
	return u
}

// valJSON stores absent collections as NULL, never as "null".
func valJSON[T any](v T, present bool) any {
	if !present {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Insert(ctx context.Context, l domain.Listing) (domain.Entity, error) {
	var (
		res sql.Result
		err error
	)
	switch l.Kind {
	case domain.KindGym:
		res, err = r.db.ExecContext(ctx, insertGymSQL, gymArgs(l)...)
	case domain.KindProduct:
		res, err = r.db.ExecContext(ctx, insertProductSQL, productArgs(l)...)
	default:
		return domain.Entity{}, fmt.Errorf("insert: unknown kind %q", l.Kind)
	}
	if err != nil {
		return domain.Entity{}, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Entity{}, err
	}
	// read back for created_at
	return r.GetByID(ctx, l.Kind, id)
}

func (r *Repo) Update(ctx context.Context, e domain.Entity) error {
	var (
		res sql.Result
		err error
	)
	switch e.Kind {
	case domain.KindGym:
		res, err = r.db.ExecContext(ctx, updateGymSQL, append(gymArgs(e.Listing), e.ID)...)
	case domain.KindProduct:
		res, err = r.db.ExecContext(ctx, updateProductSQL, append(productArgs(e.Listing), e.ID)...)
	default:
		return fmt.Errorf("update: unknown kind %q", e.Kind)
	}
	if err != nil {
		return mapErr(err)
	}
	// RowsAffected is 0 for a no-op update too, so only a missing row is an error.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, e.Kind, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) FindByURL(ctx context.Context, kind domain.Kind, url string) (domain.Entity, error) {
	return r.getOne(ctx, kind, whereURL, url, url)
}

func (r *Repo) FindByNaturalKey(ctx context.Context, kind domain.Kind, name, brand, city string) (domain.Entity, error) {
	if kind == domain.KindProduct {
		return r.getOne(ctx, kind, whereProductNatural, name, brand)
	}
	return r.getOne(ctx, kind, whereGymNatural, name, brand, city)
}

func (r *Repo) GetByID(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	return r.getOne(ctx, kind, whereID, id)
}

func (r *Repo) Count(ctx context.Context, kind domain.Kind) (int, error) {
	q := countGymsSQL
	if kind == domain.KindProduct {
		q = countProductsSQL
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) getOne(ctx context.Context, kind domain.Kind, where string, args ...any) (domain.Entity, error) {
	var (
		e   domain.Entity
		err error
	)
	switch kind {
	case domain.KindGym:
		e, err = scanGym(r.db.QueryRowContext(ctx, selectGymSQL+where, args...))
	case domain.KindProduct:
		e, err = scanProduct(r.db.QueryRowContext(ctx, selectProductSQL+where, args...))
	default:
		return domain.Entity{}, fmt.Errorf("get: unknown kind %q", kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, err
}

func mapErr(err error) error {
	var me *drv.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, me.Message)
	}
	return err
}

// ---- gyms ----

func gymArgs(l domain.Listing) []any {
	return []any{
		l.Source,
		valURL(l.URL),
		valStr(l.Name),
		valStr(l.Brand),
		valStr(l.Description),
		valStr(l.Address),
		valStr(l.City),
		valStr(l.Country),
		valF64(l.Lat),
		valF64(l.Lon),
		valJSON(l.OpeningHours, l.OpeningHours != nil),
		valJSON(l.Equipment, l.Equipment != nil),
		valJSON(l.Photos, l.Photos != nil),
		valStr(l.Phone),
		valStr(l.Website),
		valStr(l.PriceRange),
		valStr(l.LogoURL),
		valBool(l.Opened247),
		valTime(l.LastSynced),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGym(row rowScanner) (domain.Entity, error) {
	e := domain.Entity{Listing: domain.Listing{Kind: domain.KindGym}}
	var (
		url, name, brand, desc, addr, city, country sql.NullString
		phone, website, priceRange, logo            sql.NullString
		lat, lon                                    sql.NullFloat64
		hours, equipment, photos                    []byte
		open247                                     sql.NullBool
		lastSynced                                  sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.CreatedAt,
		&e.Source, &url, &name, &brand, &desc, &addr, &city, &country,
		&lat, &lon, &hours, &equipment, &photos,
		&phone, &website, &priceRange, &logo, &open247, &lastSynced,
	); err != nil {
		return domain.Entity{}, err
	}

	e.URL = url.String
	e.Name = nullStr(name)
	e.Brand = nullStr(brand)
	e.Description = nullStr(desc)
	e.Address = nullStr(addr)
	e.City = nullStr(city)
	e.Country = nullStr(country)
	e.Lat = nullF64(lat)
	e.Lon = nullF64(lon)
	if len(hours) > 0 {
		_ = json.Unmarshal(hours, &e.OpeningHours)
	}
	if len(equipment) > 0 {
		_ = json.Unmarshal(equipment, &e.Equipment)
	}
	if len(photos) > 0 {
		_ = json.Unmarshal(photos, &e.Photos)
	}
	e.Phone = nullStr(phone)
	e.Website = nullStr(website)
	e.PriceRange = nullStr(priceRange)
	e.LogoURL = nullStr(logo)
	if open247.Valid {
		b := open247.Bool
		e.Opened247 = &b
	}
	e.LastSynced = nullTime(lastSynced)
	return e, nil
}

// ---- products ----

func productArgs(l domain.Listing) []any {
	return []any{
		l.Source,
		valURL(l.URL),
		valStr(l.Name),
		valStr(l.Brand),
		valStr(l.Description),
		valF64(l.Price),
		valStr(l.Currency),
		valStr(l.Category),
		valF64(l.Rating),
		valInt(l.ReviewCount),
		valJSON(l.Images, l.Images != nil),
		valStr(l.Nutrition),
		valTime(l.LastSynced),
	}
}

func scanProduct(row rowScanner) (domain.Entity, error) {
	e := domain.Entity{Listing: domain.Listing{Kind: domain.KindProduct}}
	var (
		url, name, brand, desc, currency, category, nutrition sql.NullString
		price, rating                                         sql.NullFloat64
		reviews                                               sql.NullInt64
		images                                                []byte
		lastSynced                                            sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.CreatedAt,
		&e.Source, &url, &name, &brand, &desc, &price, &currency, &category,
		&rating, &reviews, &images, &nutrition, &lastSynced,
	); err != nil {
		return domain.Entity{}, err
	}

	e.URL = url.String
	e.Name = nullStr(name)
	e.Brand = nullStr(brand)
	e.Description = nullStr(desc)
	e.Price = nullF64(price)
	e.Currency = nullStr(currency)
	e.Category = nullStr(category)
	e.Rating = nullF64(rating)
	if reviews.Valid {
		n := int(reviews.Int64)
		e.ReviewCount = &n
	}
	if len(images) > 0 {
		_ = json.Unmarshal(images, &e.Images)
	}
	e.Nutrition = nullStr(nutrition)
	e.LastSynced = nullTime(lastSynced)
	return e, nil
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullF64(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
