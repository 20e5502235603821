package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/storage/models"
	"github.com/yameens/trumpdump/pkg/logger"
)

// Client is the single storage backend: posts, analyses and checkpoints.
// All writes are single-row autocommitting inserts; error translation to
// callers happens here and nowhere else.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		title TEXT,
		content TEXT,
		is_repost INTEGER NOT NULL DEFAULT 0,
		scraped_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_scraped_at ON posts(scraped_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_source ON posts(source);

	CREATE TABLE IF NOT EXISTS checkpoints (
		source TEXT PRIMARY KEY,
		last_seen_url TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		relevance_score INTEGER,
		top_vertical TEXT,
		top_vertical_conf REAL,
		market_json TEXT,
		tickers_json TEXT,
		FOREIGN KEY (post_id) REFERENCES posts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_analyses_relevance ON analyses(relevance_score DESC, top_vertical_conf DESC);
	CREATE INDEX IF NOT EXISTS idx_analyses_post ON analyses(post_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertPost stores a post keyed by URL. Re-inserting a seen URL is a no-op
// that returns the existing row's id.
func (c *Client) InsertPost(post *models.Post) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO posts (source, url, title, content, is_repost, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		string(post.Source),
		post.URL,
		post.Title,
		post.Content,
		boolToInt(post.IsRepost),
		post.ScrapedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert result: %w", err)
	}

	if affected == 0 {
		existing, err := c.GetPostByURL(post.URL)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve duplicate post: %w", err)
		}
		if existing == nil {
			return 0, fmt.Errorf("duplicate post vanished: %s", post.URL)
		}
		logger.Debug("Post already stored", zap.String("url", post.URL), zap.Int64("post_id", existing.ID))
		return existing.ID, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}

	logger.Info("Post stored",
		zap.Int64("post_id", id),
		zap.String("source", string(post.Source)),
		zap.String("url", post.URL),
	)
	return id, nil
}

func (c *Client) GetPostByURL(url string) (*models.Post, error) {
	row := c.db.QueryRow(
		`SELECT id, source, url, title, content, is_repost, scraped_at FROM posts WHERE url = ?`,
		url,
	)
	return scanPost(row)
}

func (c *Client) GetPostByID(id int64) (*models.Post, error) {
	row := c.db.QueryRow(
		`SELECT id, source, url, title, content, is_repost, scraped_at FROM posts WHERE id = ?`,
		id,
	)
	return scanPost(row)
}

func (c *Client) GetLatestPost(source models.Source) (*models.Post, error) {
	row := c.db.QueryRow(
		`SELECT id, source, url, title, content, is_repost, scraped_at
		 FROM posts WHERE source = ? ORDER BY scraped_at DESC, id DESC LIMIT 1`,
		string(source),
	)
	return scanPost(row)
}

func (c *Client) CountPosts() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func scanPost(row *sql.Row) (*models.Post, error) {
	var p models.Post
	var source string
	var title, content sql.NullString
	var isRepost int
	var scrapedAt int64

	err := row.Scan(&p.ID, &source, &p.URL, &title, &content, &isRepost, &scrapedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	p.Source = models.Source(source)
	p.Title = title.String
	p.Content = content.String
	p.IsRepost = isRepost != 0
	p.ScrapedAt = time.Unix(scrapedAt, 0).UTC()
	return &p, nil
}

// GetCheckpoint returns the last-seen URL for a source, or "" if none yet.
func (c *Client) GetCheckpoint(source models.Source) (string, error) {
	var url string
	err := c.db.QueryRow(
		`SELECT last_seen_url FROM checkpoints WHERE source = ?`,
		string(source),
	).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return url, nil
}

func (c *Client) SetCheckpoint(source models.Source, lastSeenURL string) error {
	_, err := c.db.Exec(
		`INSERT INTO checkpoints (source, last_seen_url) VALUES (?, ?)
		 ON CONFLICT(source) DO UPDATE SET last_seen_url = excluded.last_seen_url`,
		string(source),
		lastSeenURL,
	)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}

// PersistAnalysis appends an analysis row for a post, denormalizing the top
// vertical for threshold queries. Rows are never updated or deleted.
func (c *Client) PersistAnalysis(postID int64, analysis *models.MarketAnalysis) (int64, error) {
	var topVertical sql.NullString
	var topConf sql.NullFloat64
	if top := analysis.TopVertical(); top != nil {
		topVertical = sql.NullString{String: top.Vertical, Valid: true}
		topConf = sql.NullFloat64{Float64: top.Confidence, Valid: true}
	}

	marketJSON, err := json.Marshal(analysis)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal analysis: %w", err)
	}

	var tickersJSON sql.NullString
	if len(analysis.TickersRanked) > 0 {
		b, err := json.Marshal(analysis.TickersRanked)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal tickers: %w", err)
		}
		tickersJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := c.db.Exec(
		`INSERT INTO analyses (post_id, created_at, relevance_score, top_vertical, top_vertical_conf, market_json, tickers_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		postID,
		time.Now().Unix(),
		analysis.RelevanceScore,
		topVertical,
		topConf,
		string(marketJSON),
		tickersJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}

	logger.Info("Analysis stored",
		zap.Int64("analysis_id", id),
		zap.Int64("post_id", postID),
		zap.Int("relevance_score", analysis.RelevanceScore),
	)
	return id, nil
}

const analysisColumns = `id, post_id, created_at, relevance_score, top_vertical, top_vertical_conf, market_json, tickers_json`

func (c *Client) GetLatestAnalysis() (*models.Analysis, error) {
	row := c.db.QueryRow(
		`SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	return scanAnalysis(row)
}

func (c *Client) GetLatestRelevantAnalysis(minScore int, minConf float64) (*models.Analysis, error) {
	row := c.db.QueryRow(
		`SELECT `+analysisColumns+`
		 FROM analyses
		 WHERE relevance_score IS NOT NULL AND relevance_score >= ?
		   AND top_vertical_conf IS NOT NULL AND top_vertical_conf >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		minScore, minConf,
	)
	return scanAnalysis(row)
}

func (c *Client) GetLatestAnalysisWithTickers() (*models.Analysis, error) {
	row := c.db.QueryRow(
		`SELECT ` + analysisColumns + `
		 FROM analyses
		 WHERE tickers_json IS NOT NULL AND tickers_json != '[]'
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
	)
	return scanAnalysis(row)
}

func (c *Client) GetAnalysisByID(id int64) (*models.Analysis, error) {
	row := c.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`,
		id,
	)
	return scanAnalysis(row)
}

func (c *Client) GetAnalysesForPost(postID int64) ([]models.Analysis, error) {
	rows, err := c.db.Query(
		`SELECT `+analysisColumns+` FROM analyses WHERE post_id = ? ORDER BY created_at DESC, id DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses for post: %w", err)
	}
	defer rows.Close()

	return collectAnalyses(rows)
}

// GetRecentAnalyses lists recent analyses; with relevantFirst, rows passing
// the thresholds sort ahead of the rest, then both groups by recency.
func (c *Client) GetRecentAnalyses(limit int, relevantFirst bool, minScore int, minConf float64) ([]models.Analysis, error) {
	var rows *sql.Rows
	var err error

	if relevantFirst {
		rows, err = c.db.Query(
			`SELECT `+analysisColumns+`
			 FROM analyses
			 ORDER BY
				CASE WHEN relevance_score >= ? AND top_vertical_conf >= ? THEN 0 ELSE 1 END,
				created_at DESC,
				id DESC
			 LIMIT ?`,
			minScore, minConf, limit,
		)
	} else {
		rows, err = c.db.Query(
			`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recent analyses: %w", err)
	}
	defer rows.Close()

	return collectAnalyses(rows)
}

func (c *Client) CountAnalyses() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row *sql.Row) (*models.Analysis, error) {
	a, err := scanAnalysisFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}
	return a, nil
}

func collectAnalyses(rows *sql.Rows) ([]models.Analysis, error) {
	var out []models.Analysis
	for rows.Next() {
		a, err := scanAnalysisFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return out, nil
}

func scanAnalysisFrom(s rowScanner) (*models.Analysis, error) {
	var a models.Analysis
	var createdAt int64
	var score sql.NullInt64
	var topVertical sql.NullString
	var topConf sql.NullFloat64
	var marketJSON, tickersJSON sql.NullString

	err := s.Scan(&a.ID, &a.PostID, &createdAt, &score, &topVertical, &topConf, &marketJSON, &tickersJSON)
	if err != nil {
		return nil, err
	}

	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.RelevanceScore = int(score.Int64)
	if topVertical.Valid {
		v := topVertical.String
		a.TopVertical = &v
	}
	if topConf.Valid {
		conf := topConf.Float64
		a.TopVerticalConf = &conf
	}
	a.MarketJSON = marketJSON.String
	a.TickersJSON = tickersJSON.String
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
