package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresReportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsRepository(ctx context.Context, databaseURL string) (*PostgresReportsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresReportsRepository{pool: pool}, nil
}

func (r *PostgresReportsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresReportsRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, user_id, guest_id, name, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		product.ID,
		nullable(product.UserID),
		nullable(product.GuestID),
		product.Name,
		product.Description,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		product domain.Product
		userID  *string
		guestID *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, guest_id, name, description, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&product.ID,
		&userID,
		&guestID,
		&product.Name,
		&product.Description,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query product: %w", err)
	}
	product.UserID = deref(userID)
	product.GuestID = deref(guestID)
	return &product, nil
}

func (r *PostgresReportsRepository) ListProducts(
	ctx context.Context,
	userID, guestID string,
) ([]domain.ProductListItem, error) {
	query := `
		SELECT p.id, p.user_id, p.guest_id, p.name, p.description, p.created_at, p.updated_at,
			latest.id, latest.status
		FROM products p
		LEFT JOIN LATERAL (
			SELECT id, status FROM reports
			WHERE product_id = p.id
			ORDER BY created_at DESC
			LIMIT 1
		) latest ON TRUE
	`
	var args []any
	if userID != "" {
		query += " WHERE p.user_id = $1"
		args = append(args, userID)
	} else {
		query += " WHERE p.guest_id = $1"
		args = append(args, guestID)
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ProductListItem, 0)
	for rows.Next() {
		var (
			item         domain.ProductListItem
			ownerUser    *string
			ownerGuest   *string
			latestID     *string
			latestStatus *string
		)
		err := rows.Scan(
			&item.Product.ID,
			&ownerUser,
			&ownerGuest,
			&item.Product.Name,
			&item.Product.Description,
			&item.Product.CreatedAt,
			&item.Product.UpdatedAt,
			&latestID,
			&latestStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product item: %w", err)
		}
		item.Product.UserID = deref(ownerUser)
		item.Product.GuestID = deref(ownerGuest)
		item.LatestReportID = deref(latestID)
		item.LatestStatus = domain.ReportStatus(deref(latestStatus))
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate product items: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresReportsRepository) CreateReport(ctx context.Context, report *domain.Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (
			id, product_id, user_id, guest_id, status, error_message,
			visibility_cutoff, started_at, completed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		report.ID,
		report.ProductID,
		nullable(report.UserID),
		nullable(report.GuestID),
		string(report.Status),
		report.ErrorMessage,
		report.VisibilityCutoff,
		report.StartedAt,
		report.CompletedAt,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	var (
		report  domain.Report
		userID  *string
		guestID *string
		status  string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, product_id, user_id, guest_id, status, error_message,
			visibility_cutoff, started_at, completed_at, created_at, updated_at
		FROM reports
		WHERE id = $1
	`, reportID).Scan(
		&report.ID,
		&report.ProductID,
		&userID,
		&guestID,
		&status,
		&report.ErrorMessage,
		&report.VisibilityCutoff,
		&report.StartedAt,
		&report.CompletedAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	report.UserID = deref(userID)
	report.GuestID = deref(guestID)
	report.Status = domain.ReportStatus(status)
	return &report, nil
}

// UpdateReportStatus persists a status move. The WHERE clause refuses writes
// once the row is terminal so a late worker cannot reopen a finished report.
func (r *PostgresReportsRepository) UpdateReportStatus(ctx context.Context, report *domain.Report) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = $2,
			error_message = $3,
			started_at = $4,
			completed_at = $5,
			updated_at = $6
		WHERE id = $1 AND status NOT IN ('complete', 'failed')
	`,
		report.ID,
		string(report.Status),
		report.ErrorMessage,
		report.StartedAt,
		report.CompletedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if command.RowsAffected() == 0 {
		if _, getErr := r.GetReport(ctx, report.ID); getErr != nil {
			return getErr
		}
		return ErrReportClosed
	}
	return nil
}

func (r *PostgresReportsRepository) FindGuestReport(ctx context.Context, guestID string) (*domain.Report, error) {
	if guestID == "" {
		return nil, ErrNotFound
	}
	var reportID string
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM reports
		WHERE guest_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, guestID).Scan(&reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query guest report: %w", err)
	}
	return r.GetReport(ctx, reportID)
}

func (r *PostgresReportsRepository) CreateStep(ctx context.Context, step *domain.ReportStep) error {
	command, err := r.pool.Exec(ctx, `
		INSERT INTO report_steps (
			id, report_id, step_name, status, started_at, finished_at, error_message, payload
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (
			SELECT 1 FROM reports WHERE id = $2 AND status NOT IN ('complete', 'failed')
		)
	`,
		step.ID,
		step.ReportID,
		step.StepName,
		string(step.Status),
		step.StartedAt,
		step.FinishedAt,
		step.ErrorMessage,
		step.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert report step: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrReportClosed
	}
	return nil
}

func (r *PostgresReportsRepository) UpdateStep(ctx context.Context, step *domain.ReportStep) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE report_steps
		SET status = $2,
			finished_at = $3,
			error_message = $4,
			payload = $5
		WHERE id = $1 AND status = 'running'
	`,
		step.ID,
		string(step.Status),
		step.FinishedAt,
		step.ErrorMessage,
		step.Payload,
	)
	if err != nil {
		return fmt.Errorf("update report step: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresReportsRepository) ListSteps(ctx context.Context, reportID string) ([]domain.ReportStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, report_id, step_name, status, started_at, finished_at, error_message, payload
		FROM report_steps
		WHERE report_id = $1
		ORDER BY started_at ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report steps: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.ReportStep, 0)
	for rows.Next() {
		var (
			step    domain.ReportStep
			status  string
			payload []byte
		)
		err := rows.Scan(
			&step.ID,
			&step.ReportID,
			&step.StepName,
			&status,
			&step.StartedAt,
			&step.FinishedAt,
			&step.ErrorMessage,
			&payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report step: %w", err)
		}
		step.Status = domain.StepStatus(status)
		step.Payload = json.RawMessage(payload)
		steps = append(steps, step)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate report steps: %w", rows.Err())
	}
	return steps, nil
}

func (r *PostgresReportsRepository) CreateSuggestion(ctx context.Context, suggestion *domain.Suggestion) error {
	if err := policy.ValidateMeta(suggestion.Kind, suggestion.Meta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}

	command, err := r.pool.Exec(ctx, `
		INSERT INTO suggestions (
			id, report_id, source_type, kind, text, rank, meta, visibility, created_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE EXISTS (
			SELECT 1 FROM reports WHERE id = $2 AND status NOT IN ('complete', 'failed')
		)
	`,
		suggestion.ID,
		suggestion.ReportID,
		string(suggestion.SourceType),
		string(suggestion.Kind),
		suggestion.Text,
		suggestion.Rank,
		suggestion.Meta,
		string(suggestion.Visibility),
		suggestion.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrReportClosed
	}
	return nil
}

func (r *PostgresReportsRepository) GetSuggestion(ctx context.Context, suggestionID string) (*domain.Suggestion, error) {
	var (
		suggestion domain.Suggestion
		sourceType string
		kind       string
		visibility string
		meta       []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_id, source_type, kind, text, rank, meta, visibility, created_at
		FROM suggestions
		WHERE id = $1
	`, suggestionID).Scan(
		&suggestion.ID,
		&suggestion.ReportID,
		&sourceType,
		&kind,
		&suggestion.Text,
		&suggestion.Rank,
		&meta,
		&visibility,
		&suggestion.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query suggestion: %w", err)
	}
	suggestion.SourceType = domain.SourceType(sourceType)
	suggestion.Kind = domain.SuggestionKind(kind)
	suggestion.Visibility = domain.Visibility(visibility)
	suggestion.Meta = json.RawMessage(meta)
	return &suggestion, nil
}

func (r *PostgresReportsRepository) ListSuggestions(ctx context.Context, reportID string) ([]domain.Suggestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, report_id, source_type, kind, text, rank, meta, visibility, created_at
		FROM suggestions
		WHERE report_id = $1
		ORDER BY rank DESC, created_at ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]domain.Suggestion, 0)
	for rows.Next() {
		var (
			suggestion domain.Suggestion
			sourceType string
			kind       string
			visibility string
			meta       []byte
		)
		err := rows.Scan(
			&suggestion.ID,
			&suggestion.ReportID,
			&sourceType,
			&kind,
			&suggestion.Text,
			&suggestion.Rank,
			&meta,
			&visibility,
			&suggestion.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestion.SourceType = domain.SourceType(sourceType)
		suggestion.Kind = domain.SuggestionKind(kind)
		suggestion.Visibility = domain.Visibility(visibility)
		suggestion.Meta = json.RawMessage(meta)
		suggestions = append(suggestions, suggestion)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", rows.Err())
	}
	return suggestions, nil
}

func (r *PostgresReportsRepository) UpdateSuggestionMeta(
	ctx context.Context,
	suggestionID string,
	meta json.RawMessage,
) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE suggestions SET meta = $2 WHERE id = $1
	`, suggestionID, meta)
	if err != nil {
		return fmt.Errorf("update suggestion meta: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeGuest re-owns all guest products and reports to the user in one
// transaction and reports how many rows changed hands.
func (r *PostgresReportsRepository) MergeGuest(ctx context.Context, guestID, userID string) (int, error) {
	if guestID == "" || userID == "" {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	merged := 0
	products, err := tx.Exec(ctx, `
		UPDATE products
		SET user_id = $2, guest_id = NULL, updated_at = NOW()
		WHERE guest_id = $1
	`, guestID, userID)
	if err != nil {
		return 0, fmt.Errorf("merge products: %w", err)
	}
	merged += int(products.RowsAffected())

	reports, err := tx.Exec(ctx, `
		UPDATE reports
		SET user_id = $2, guest_id = NULL, updated_at = NOW()
		WHERE guest_id = $1
	`, guestID, userID)
	if err != nil {
		return 0, fmt.Errorf("merge reports: %w", err)
	}
	merged += int(reports.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit merge: %w", err)
	}
	return merged, nil
}

func (r *PostgresReportsRepository) CreateArticle(ctx context.Context, article *domain.Article) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO articles (
			id, report_id, suggestion_id, title, description, content_md, content_html,
			status, error_message, model_used, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		article.ID,
		article.ReportID,
		nullable(article.SuggestionID),
		article.Title,
		article.Description,
		article.ContentMD,
		article.ContentHTML,
		string(article.Status),
		article.ErrorMessage,
		article.ModelUsed,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetArticle(ctx context.Context, articleID string) (*domain.Article, error) {
	var (
		article      domain.Article
		suggestionID *string
		status       string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_id, suggestion_id, title, description, content_md, content_html,
			status, error_message, model_used, created_at, updated_at
		FROM articles
		WHERE id = $1
	`, articleID).Scan(
		&article.ID,
		&article.ReportID,
		&suggestionID,
		&article.Title,
		&article.Description,
		&article.ContentMD,
		&article.ContentHTML,
		&status,
		&article.ErrorMessage,
		&article.ModelUsed,
		&article.CreatedAt,
		&article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query article: %w", err)
	}
	article.SuggestionID = deref(suggestionID)
	article.Status = domain.AssetStatus(status)
	return &article, nil
}

func (r *PostgresReportsRepository) UpdateArticle(ctx context.Context, article *domain.Article) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE articles
		SET title = $2,
			description = $3,
			content_md = $4,
			content_html = $5,
			status = $6,
			error_message = $7,
			model_used = $8,
			updated_at = $9
		WHERE id = $1
	`,
		article.ID,
		article.Title,
		article.Description,
		article.ContentMD,
		article.ContentHTML,
		string(article.Status),
		article.ErrorMessage,
		article.ModelUsed,
		article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) CreateMeme(ctx context.Context, meme *domain.Meme) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO memes (
			id, report_id, suggestion_id, concept, instructions, image_key,
			status, error_message, model_used, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		meme.ID,
		meme.ReportID,
		nullable(meme.SuggestionID),
		meme.Concept,
		meme.Instructions,
		meme.ImageKey,
		string(meme.Status),
		meme.ErrorMessage,
		meme.ModelUsed,
		meme.CreatedAt,
		meme.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meme: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetMeme(ctx context.Context, memeID string) (*domain.Meme, error) {
	var (
		meme         domain.Meme
		suggestionID *string
		status       string
		instructions []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_id, suggestion_id, concept, instructions, image_key,
			status, error_message, model_used, created_at, updated_at
		FROM memes
		WHERE id = $1
	`, memeID).Scan(
		&meme.ID,
		&meme.ReportID,
		&suggestionID,
		&meme.Concept,
		&instructions,
		&meme.ImageKey,
		&status,
		&meme.ErrorMessage,
		&meme.ModelUsed,
		&meme.CreatedAt,
		&meme.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query meme: %w", err)
	}
	meme.SuggestionID = deref(suggestionID)
	meme.Status = domain.AssetStatus(status)
	meme.Instructions = json.RawMessage(instructions)
	return &meme, nil
}

func (r *PostgresReportsRepository) UpdateMeme(ctx context.Context, meme *domain.Meme) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE memes
		SET image_key = $2,
			status = $3,
			error_message = $4,
			model_used = $5,
			updated_at = $6
		WHERE id = $1
	`,
		meme.ID,
		meme.ImageKey,
		string(meme.Status),
		meme.ErrorMessage,
		meme.ModelUsed,
		meme.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update meme: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) CreateSlop(ctx context.Context, slop *domain.Slop) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slops (
			id, report_id, suggestion_id, concept, instructions, video_key,
			status, error_message, model_used, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		slop.ID,
		slop.ReportID,
		nullable(slop.SuggestionID),
		slop.Concept,
		slop.Instructions,
		slop.VideoKey,
		string(slop.Status),
		slop.ErrorMessage,
		slop.ModelUsed,
		slop.CreatedAt,
		slop.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert slop: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetSlop(ctx context.Context, slopID string) (*domain.Slop, error) {
	var (
		slop         domain.Slop
		suggestionID *string
		status       string
		instructions []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_id, suggestion_id, concept, instructions, video_key,
			status, error_message, model_used, created_at, updated_at
		FROM slops
		WHERE id = $1
	`, slopID).Scan(
		&slop.ID,
		&slop.ReportID,
		&suggestionID,
		&slop.Concept,
		&instructions,
		&slop.VideoKey,
		&status,
		&slop.ErrorMessage,
		&slop.ModelUsed,
		&slop.CreatedAt,
		&slop.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query slop: %w", err)
	}
	slop.SuggestionID = deref(suggestionID)
	slop.Status = domain.AssetStatus(status)
	slop.Instructions = json.RawMessage(instructions)
	return &slop, nil
}

func (r *PostgresReportsRepository) UpdateSlop(ctx context.Context, slop *domain.Slop) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE slops
		SET video_key = $2,
			status = $3,
			error_message = $4,
			model_used = $5,
			updated_at = $6
		WHERE id = $1
	`,
		slop.ID,
		slop.VideoKey,
		string(slop.Status),
		slop.ErrorMessage,
		slop.ModelUsed,
		slop.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update slop: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) GetUsage(ctx context.Context, userID, day string) (domain.UsageQuota, error) {
	usage := domain.UsageQuota{UserID: userID, Day: day}
	err := r.pool.QueryRow(ctx, `
		SELECT content_count, article_count, video_count
		FROM usage_quotas
		WHERE user_id = $1 AND day = $2
	`, userID, day).Scan(&usage.ContentCount, &usage.ArticleCount, &usage.VideoCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return usage, nil
		}
		return usage, fmt.Errorf("query usage: %w", err)
	}
	return usage, nil
}

func (r *PostgresReportsRepository) IncrementUsage(ctx context.Context, userID, day, kind string) error {
	column := ""
	switch kind {
	case "content":
		column = "content_count"
	case "article":
		column = "article_count"
	case "video":
		column = "video_count"
	default:
		return fmt.Errorf("unknown usage kind: %s", kind)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_quotas (user_id, day, content_count, article_count, video_count)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (user_id, day) DO NOTHING
	`, userID, day)
	if err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE usage_quotas SET %s = %s + 1 WHERE user_id = $1 AND day = $2
	`, column, column), userID, day)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
