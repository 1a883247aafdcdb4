package mysql

// Every statement filters or keys on tenant_id.

const existingFingerprintsPrefix = `
SELECT fingerprint
FROM reviews
WHERE tenant_id = ? AND provider = ? AND fingerprint IN (`

const insertReviewsPrefix = "INSERT INTO reviews\n  (tenant_id, location_id, provider, fingerprint, rating, author, body, reviewed_at, lang, raw)\nVALUES "

// Provider content is authoritative; a field the provider dropped is cleared.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  location_id = VALUES(location_id),\n" +
	"  rating      = VALUES(rating),\n" +
	"  author      = VALUES(author),\n" +
	"  body        = VALUES(body),\n" +
	"  reviewed_at = VALUES(reviewed_at),\n" +
	"  lang        = VALUES(lang),\n" +
	"  raw         = VALUES(raw)\n"

const listReviewsSQL = `
SELECT
  id,
  tenant_id,
  location_id,
  provider,
  fingerprint,
  rating,
  author,
  body,
  reviewed_at,
  lang,
  raw
FROM reviews
WHERE tenant_id = ? AND location_id = ?
ORDER BY reviewed_at DESC, id DESC
LIMIT ?`

const upsertSyncStatusSQL = `
INSERT INTO sync_status
  (tenant_id, location_id, provider, last_run_at, outcome, error_code, last_error, fetched, inserted, updated)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  last_run_at = VALUES(last_run_at),
  outcome     = VALUES(outcome),
  error_code  = VALUES(error_code),
  last_error  = VALUES(last_error),
  fetched     = VALUES(fetched),
  inserted    = VALUES(inserted),
  updated     = VALUES(updated)
`

const listSyncStatusSQL = `
SELECT tenant_id, location_id, provider, last_run_at, outcome, error_code, last_error, fetched, inserted, updated
FROM sync_status
WHERE tenant_id = ?
ORDER BY location_id, provider`

// -----------------------------------------------------------------------------
// LOCATION REGISTRY
// -----------------------------------------------------------------------------

const locationColumns = `id, tenant_id, provider_location_id, display_name, rating, rating_count`

const resolveLocationSQL = `
SELECT ` + locationColumns + `
FROM locations
WHERE tenant_id = ? AND provider_location_id = ?`

// "Most recent" is by registration time; summary refreshes do not reorder.
const latestLocationSQL = `
SELECT ` + locationColumns + `
FROM locations
WHERE tenant_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

const listLocationsSQL = `
SELECT ` + locationColumns + `
FROM locations
WHERE tenant_id = ?
ORDER BY id`

// COALESCE keeps the stored value when the provider did not report a field.
const updateSummarySQL = `
UPDATE locations SET
  display_name       = COALESCE(?, display_name),
  rating             = COALESCE(?, rating),
  rating_count       = COALESCE(?, rating_count),
  summary_updated_at = CURRENT_TIMESTAMP
WHERE tenant_id = ? AND id = ?`
