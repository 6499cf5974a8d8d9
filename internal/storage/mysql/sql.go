package mysql

// Column lists are shared by INSERT, UPDATE and SELECT so scan order never drifts.

const gymColumns = `source, url, name, brand, description, address, city, country,
  latitude, longitude, opening_hours, equipment, photos, phone, website, price_range,
  logo_url, opened_24_7, last_synced`

const insertGymSQL = `
INSERT INTO gyms
  (` + gymColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateGymSQL = `
UPDATE gyms SET
  source        = ?,
  url           = ?,
  name          = ?,
  brand         = ?,
  description   = ?,
  address       = ?,
  city          = ?,
  country       = ?,
  latitude      = ?,
  longitude     = ?,
  opening_hours = ?,
  equipment     = ?,
  photos        = ?,
  phone         = ?,
  website       = ?,
  price_range   = ?,
  logo_url      = ?,
  opened_24_7   = ?,
  last_synced   = ?
WHERE id = ?
`

const selectGymSQL = `SELECT id, created_at, ` + gymColumns + ` FROM gyms `

const productColumns = `source, url, name, brand, description, price, currency, category,
  rating, review_count, images, nutrition, last_synced`

const insertProductSQL = `
INSERT INTO products
  (` + productColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateProductSQL = `
UPDATE products SET
  source       = ?,
  url          = ?,
  name         = ?,
  brand        = ?,
  description  = ?,
  price        = ?,
  currency     = ?,
  category     = ?,
  rating       = ?,
  review_count = ?,
  images       = ?,
  nutrition    = ?,
  last_synced  = ?
WHERE id = ?
`

const selectProductSQL = `SELECT id, created_at, ` + productColumns + ` FROM products `

// Identity columns are utf8mb4_bin, so every comparison here is exact and case-sensitive.
// Natural keys compare NULL and '' alike: an absent brand or city is stored as NULL.
const (
	whereID  = `WHERE id = ?`
	whereURL = `WHERE url_hash = UNHEX(SHA2(?, 256)) AND url = ?`

	whereGymNatural     = `WHERE name = ? AND brand <=> NULLIF(?, '') AND city <=> NULLIF(?, '') ORDER BY id LIMIT 1`
	whereProductNatural = `WHERE name = ? AND brand <=> NULLIF(?, '') ORDER BY id LIMIT 1`

	countGymsSQL     = `SELECT COUNT(*) FROM gyms`
	countProductsSQL = `SELECT COUNT(*) FROM products`
)
