package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailhead-travel/trailhead/internal/domain"
	"github.com/trailhead-travel/trailhead/internal/geo"
)

// ToursRepository provides persistence helpers for tour entities, including
// the spatial and statistical query pipelines over the catalog.
type ToursRepository struct {
	pool *pgxpool.Pool
}

const tourColumns = `
    id,
    name,
    slug,
    duration,
    max_group_size,
    difficulty,
    ratings_average,
    ratings_quantity,
    price,
    summary,
    description,
    start_lat,
    start_lng,
    start_dates,
    secret,
    created_at,
    updated_at
`

// sqlCentralAngle is the haversine central angle in radians between a tour's
// start location and a parameterized center ($1 = lat, $2 = lng in degrees).
// Used both for spherical-cap membership and for great-circle distances.
const sqlCentralAngle = `
    2 * asin(sqrt(
        power(sin((radians(start_lat) - radians($1)) / 2), 2)
        + cos(radians($1)) * cos(radians(start_lat))
          * power(sin((radians(start_lng) - radians($2)) / 2), 2)
    ))
`

// TourCreateParams bundles the fields required to create a tour. The rating
// summary is not settable here; new tours start at the documented defaults.
type TourCreateParams struct {
	Name          string
	Duration      int
	MaxGroupSize  int
	Difficulty    string
	Price         float64
	Summary       string
	Description   string
	StartLocation domain.GeoPoint
	StartDates    []time.Time
	Secret        bool
}

// TourListFilters encapsulates explicit list predicates. Secret tours are
// excluded unless IncludeSecret is set; the filtering is composed here, not
// hidden inside a default query scope.
type TourListFilters struct {
	Difficulty    *string
	MinRating     *float64
	MaxPrice      *float64
	Sort          string
	Limit         int
	IncludeSecret bool
}

// sortColumns whitelists the sort keys accepted by List.
var sortColumns = map[string]string{
	"name":            "name",
	"price":           "price",
	"ratings_average": "ratings_average",
	"created_at":      "created_at",
}

// Create inserts a new tour row and returns the stored entity.
func (r *ToursRepository) Create(ctx context.Context, params TourCreateParams) (domain.Tour, error) {
	query := fmt.Sprintf(`
        INSERT INTO tours (id, name, slug, duration, max_group_size, difficulty, price, summary, description, start_lat, start_lng, start_dates, secret)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING %s
    `, tourColumns)

	// pgx encodes a nil slice as SQL NULL and the column is NOT NULL.
	startDates := params.StartDates
	if startDates == nil {
		startDates = []time.Time{}
	}

	row := r.pool.QueryRow(ctx, query,
		uuid.NewString(),
		params.Name,
		slug.Make(params.Name),
		params.Duration,
		params.MaxGroupSize,
		params.Difficulty,
		params.Price,
		params.Summary,
		params.Description,
		params.StartLocation.Lat,
		params.StartLocation.Lng,
		startDates,
		params.Secret,
	)
	tour, err := scanTour(row)
	if err != nil {
		return domain.Tour{}, mapPgError(err)
	}
	return tour, nil
}

// GetByID fetches a tour by its identifier.
func (r *ToursRepository) GetByID(ctx context.Context, id string) (domain.Tour, error) {
	query := fmt.Sprintf(`SELECT %s FROM tours WHERE id = $1`, tourColumns)
	row := r.pool.QueryRow(ctx, query, id)
	tour, err := scanTour(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Tour{}, ErrNotFound
		}
		return domain.Tour{}, err
	}
	return tour, nil
}

// UpdateRatingSummary writes the two denormalized rating columns and nothing
// else. A missing tour returns ErrNotFound so the aggregator can treat it as
// a no-op.
func (r *ToursRepository) UpdateRatingSummary(ctx context.Context, id string, summary domain.RatingSummary) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE tours
        SET ratings_average = $2,
            ratings_quantity = $3,
            updated_at = now()
        WHERE id = $1
    `, id, summary.Average, summary.Quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns tours that match the provided filters.
func (r *ToursRepository) List(ctx context.Context, filters TourListFilters) ([]domain.Tour, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filters.IncludeSecret {
		where = append(where, "secret = FALSE")
	}
	if filters.Difficulty != nil {
		where = append(where, fmt.Sprintf("difficulty = %s", arg(*filters.Difficulty)))
	}
	if filters.MinRating != nil {
		where = append(where, fmt.Sprintf("ratings_average >= %s", arg(*filters.MinRating)))
	}
	if filters.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price <= %s", arg(*filters.MaxPrice)))
	}

	orderBy, err := buildSortClause(filters.Sort)
	if err != nil {
		return nil, err
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(tourColumns)
	queryBuilder.WriteString(" FROM tours")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY ")
	queryBuilder.WriteString(orderBy)
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Tour, 0)
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// WithinRadius returns visible tours whose start location lies inside the
// spherical cap of the given angular radius (radians) around center.
func (r *ToursRepository) WithinRadius(ctx context.Context, center domain.GeoPoint, angularRadius float64) ([]domain.Tour, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tours
        WHERE secret = FALSE AND %s <= $3
        ORDER BY name ASC
    `, tourColumns, sqlCentralAngle)

	rows, err := r.pool.Query(ctx, query, center.Lat, center.Lng, angularRadius)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Tour, 0)
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DistancesFrom projects every visible tour onto its great-circle distance
// from center, expressed in the given unit, nearest first. Ascending order is
// a hard contract; name breaks exact ties deterministically.
func (r *ToursRepository) DistancesFrom(ctx context.Context, center domain.GeoPoint, unit geo.Unit) ([]domain.TourDistance, error) {
	query := fmt.Sprintf(`
        SELECT id, name, %s * $3 AS distance
        FROM tours
        WHERE secret = FALSE
        ORDER BY distance ASC, name ASC
    `, sqlCentralAngle)

	multiplier := geo.EarthRadiusMeters * unit.Multiplier()
	rows, err := r.pool.Query(ctx, query, center.Lat, center.Lng, multiplier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TourDistance, 0)
	for rows.Next() {
		var d domain.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DifficultyStats groups visible tours rated at least minRating by upper-cased
// difficulty, ordered by average price ascending. The group key breaks
// equal-price ties so repeated runs order identically.
func (r *ToursRepository) DifficultyStats(ctx context.Context, minRating float64) ([]domain.DifficultyStats, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT upper(difficulty) AS difficulty,
               COUNT(*)::int8 AS num_tours,
               SUM(ratings_quantity)::int8 AS num_ratings,
               AVG(ratings_average)::float8 AS avg_rating,
               MIN(ratings_average)::float8 AS min_rating,
               MAX(ratings_average)::float8 AS max_rating,
               AVG(price)::float8 AS avg_price,
               MIN(price)::float8 AS min_price,
               MAX(price)::float8 AS max_price
        FROM tours
        WHERE secret = FALSE AND ratings_average >= $1
        GROUP BY upper(difficulty)
        ORDER BY avg_price ASC, upper(difficulty) ASC
    `, minRating)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.DifficultyStats, 0)
	for rows.Next() {
		var s domain.DifficultyStats
		if err := rows.Scan(
			&s.Difficulty,
			&s.NumTours,
			&s.NumRatings,
			&s.AvgRating,
			&s.MinRating,
			&s.MaxRating,
			&s.AvgPrice,
			&s.MinPrice,
			&s.MaxPrice,
		); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan expands start_dates into one row per date, keeps dates inside
// the given calendar year (all of Dec 31 included), and buckets them by month
// with per-month counts and ordered tour names. Months with zero starts are
// absent, never synthesized.
func (r *ToursRepository) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error) {
	if year < 1000 || year > 9999 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	// Calendar buckets are defined in UTC regardless of the server timezone.
	rows, err := r.pool.Query(ctx, `
        SELECT EXTRACT(MONTH FROM d AT TIME ZONE 'UTC')::int AS month,
               COUNT(*)::int8 AS num_tour_starts,
               ARRAY_AGG(t.name ORDER BY t.name) AS tours
        FROM tours t
        CROSS JOIN LATERAL UNNEST(t.start_dates) AS d
        WHERE t.secret = FALSE
          AND (d AT TIME ZONE 'UTC') >= make_date($1, 1, 1)
          AND (d AT TIME ZONE 'UTC') < make_date($1 + 1, 1, 1)
        GROUP BY 1
        ORDER BY num_tour_starts DESC, month ASC
        LIMIT 12
    `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plan := make([]domain.MonthlyPlanEntry, 0, 12)
	for rows.Next() {
		var e domain.MonthlyPlanEntry
		if err := rows.Scan(&e.Month, &e.NumTourStarts, &e.Tours); err != nil {
			return nil, err
		}
		plan = append(plan, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

func buildSortClause(sort string) (string, error) {
	if strings.TrimSpace(sort) == "" {
		return "created_at DESC, id DESC", nil
	}

	clauses := make([]string, 0)
	for _, key := range strings.Split(sort, ",") {
		key = strings.TrimSpace(key)
		direction := "ASC"
		if strings.HasPrefix(key, "-") {
			direction = "DESC"
			key = key[1:]
		}
		column, ok := sortColumns[key]
		if !ok {
			return "", fmt.Errorf("invalid sort key %q", key)
		}
		clauses = append(clauses, column+" "+direction)
	}
	clauses = append(clauses, "id ASC")
	return strings.Join(clauses, ", "), nil
}

func scanTour(row pgx.Row) (domain.Tour, error) {
	var tour domain.Tour
	err := row.Scan(
		&tour.ID,
		&tour.Name,
		&tour.Slug,
		&tour.Duration,
		&tour.MaxGroupSize,
		&tour.Difficulty,
		&tour.RatingsAverage,
		&tour.RatingsQuantity,
		&tour.Price,
		&tour.Summary,
		&tour.Description,
		&tour.StartLocation.Lat,
		&tour.StartLocation.Lng,
		&tour.StartDates,
		&tour.Secret,
		&tour.CreatedAt,
		&tour.UpdatedAt,
	)
	if err != nil {
		return domain.Tour{}, err
	}
	return tour, nil
}
